package docstore

import (
	"context"
	"fmt"
)

const (
	DriverMemory    = "memory"
	DriverDatastore = "datastore"
	DriverMongo     = "mongo"
)

// Options selects and configures a backend.
type Options struct {
	Driver    string
	ProjectID string
	MongoURL  string
	MongoDB   string
}

// Open returns the backend named by opts.Driver and a function
// releasing it.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	switch opts.Driver {
	case DriverMemory, "":
		return NewMemoryStore(), func() error { return nil }, nil
	case DriverDatastore:
		client, err := NewDatastoreClient(ctx, opts.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		return NewDatastoreStore(client), client.Close, nil
	case DriverMongo:
		m, err := NewMongoStore(opts.MongoURL, opts.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return m, func() error { return m.Close(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}
