package docstore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
)

type datastoreStore struct {
	client *datastore.Client
}

// NewDatastoreStore returns a Store backed by Google Cloud Datastore.
// Each collection is an entity kind and documents are keyed by name.
func NewDatastoreStore(client *datastore.Client) Store {
	return &datastoreStore{
		client: client,
	}
}

// NewDatastoreClient creates a Datastore client for the project.
func NewDatastoreClient(ctx context.Context, projectID string) (*datastore.Client, error) {
	client, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore client for project [%s], error %v", projectID, err)
	}
	return client, nil
}

func (ds *datastoreStore) Get(ctx context.Context, collection, id string) (Document, error) {
	key := datastore.NameKey(collection, id, nil)
	var props datastore.PropertyList
	if err := ds.client.Get(ctx, key, &props); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document [%s/%s], error %v", collection, id, err)
	}
	return fromProperties(props), nil
}

func (ds *datastoreStore) Merge(ctx context.Context, collection, id string, doc Document) error {
	patch, err := toProperties(doc)
	if err != nil {
		return fmt.Errorf("failed to convert document [%s/%s], error %v", collection, id, err)
	}
	key := datastore.NameKey(collection, id, nil)
	_, err = ds.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var current datastore.PropertyList
		if err := tx.Get(key, &current); err != nil && err != datastore.ErrNoSuchEntity {
			return err
		}
		merged := overlayProperties(current, patch)
		_, err := tx.Put(key, &merged)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to merge document [%s/%s], error %v", collection, id, err)
	}
	return nil
}

// overlayProperties replaces the properties of current named in patch
// and appends the new ones, keeping the order of current.
func overlayProperties(current, patch datastore.PropertyList) datastore.PropertyList {
	byName := make(map[string]datastore.Property, len(patch))
	for _, p := range patch {
		byName[p.Name] = p
	}
	out := make(datastore.PropertyList, 0, len(current)+len(patch))
	for _, p := range current {
		if np, ok := byName[p.Name]; ok {
			out = append(out, np)
			delete(byName, p.Name)
			continue
		}
		out = append(out, p)
	}
	for _, p := range patch {
		if _, ok := byName[p.Name]; ok {
			out = append(out, p)
		}
	}
	return out
}

func toProperties(doc Document) (datastore.PropertyList, error) {
	props := make(datastore.PropertyList, 0, len(doc))
	for name, v := range doc {
		value, err := toDatastoreValue(v, false)
		if err != nil {
			return nil, fmt.Errorf("field %s: %v", name, err)
		}
		props = append(props, datastore.Property{Name: name, Value: value, NoIndex: true})
	}
	return props, nil
}

func toDatastoreValue(v interface{}, inArray bool) (interface{}, error) {
	switch t := v.(type) {
	case nil, string, bool, int64, float64, time.Time:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case Document:
		return toEntity(t)
	case map[string]interface{}:
		return toEntity(Document(t))
	case []interface{}:
		if inArray {
			return nil, fmt.Errorf("nested arrays are not supported")
		}
		out := make([]interface{}, len(t))
		for i, item := range t {
			value, err := toDatastoreValue(item, true)
			if err != nil {
				return nil, err
			}
			out[i] = value
		}
		return out, nil
	case []Document, []map[string]interface{}:
		return toDatastoreValue(cloneValue(t), inArray)
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

func toEntity(doc Document) (*datastore.Entity, error) {
	props, err := toProperties(doc)
	if err != nil {
		return nil, err
	}
	return &datastore.Entity{Properties: props}, nil
}

func fromProperties(props datastore.PropertyList) Document {
	doc := make(Document, len(props))
	for _, p := range props {
		doc[p.Name] = fromDatastoreValue(p.Value)
	}
	return doc
}

func fromDatastoreValue(v interface{}) interface{} {
	switch t := v.(type) {
	case *datastore.Entity:
		if t == nil {
			return nil
		}
		return fromProperties(t.Properties)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = fromDatastoreValue(item)
		}
		return out
	case *datastore.Key:
		if t == nil {
			return nil
		}
		return t.Name
	default:
		return v
	}
}
