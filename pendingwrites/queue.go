// Package pendingwrites buffers remote document writes that failed and
// replays them on demand.
//
// Entries are keyed by (document id, collection): enqueueing the same
// pair again overwrites the queued payload and keeps the original
// position. SyncAll replays every entry once, in insertion order,
// removing the ones the remote store accepted. There is no backoff and
// no retry limit; entries stay queued until a sync succeeds.
package pendingwrites

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/janneta/canvass/docstore"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// LastUpdatedField is stamped on payloads queued by SaveOrEnqueue.
const LastUpdatedField = "lastUpdated"

// Entry is a queued write.
type Entry struct {
	DocID       string            `json:"docId"`
	Collection  string            `json:"collection"`
	Payload     docstore.Document `json:"payload"`
	LastUpdated int64             `json:"lastUpdated"` // Unix millis

	seq     int64
	version int64
}

// SyncResult summarizes a SyncAll run.
type SyncResult struct {
	Synced int     `json:"synced"`
	Failed []Entry `json:"failed"`
}

// Queue is the pending-write queue. It lives in the local cache
// database (table pending_writes).
type Queue struct {
	db     *sql.DB
	remote docstore.Store
	logger *zap.SugaredLogger
	now    func() time.Time
	syncMu sync.Mutex
}

// New returns a queue over db replaying into remote.
func New(db *sql.DB, remote docstore.Store, logger *zap.SugaredLogger) *Queue {
	return &Queue{
		db:     db,
		remote: remote,
		logger: logger,
		now:    time.Now,
	}
}

func millis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// Enqueue upserts the entry for (docID, collection). It only touches
// the local database.
func (q *Queue) Enqueue(ctx context.Context, docID, collection string, payload docstore.Document) error {
	b, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("failed to encode pending write [%s/%s], error %v", collection, docID, err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO pending_writes (doc_id, collection, payload, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (doc_id, collection) DO UPDATE SET
			payload = excluded.payload,
			last_updated = excluded.last_updated,
			version = pending_writes.version + 1
	`, docID, collection, b, millis(q.now()))
	if err != nil {
		return fmt.Errorf("failed to queue pending write [%s/%s], error %v", collection, docID, err)
	}
	q.logger.Infow("queued pending write", "collection", collection, "docId", docID)
	return nil
}

// List returns every queued entry in insertion order.
func (q *Queue) List(ctx context.Context) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT seq, version, doc_id, collection, payload, last_updated
		FROM pending_writes ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending writes, error %v", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var b []byte
		if err := rows.Scan(&e.seq, &e.version, &e.DocID, &e.Collection, &b, &e.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to read pending write, error %v", err)
		}
		if e.Payload, err = decodePayload(b); err != nil {
			return nil, fmt.Errorf("failed to decode pending write [%s/%s], error %v", e.Collection, e.DocID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list pending writes, error %v", err)
	}
	return entries, nil
}

// Len returns the number of queued entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_writes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending writes, error %v", err)
	}
	return n, nil
}

// SyncAll replays every queued entry. Successful entries are removed;
// failed ones stay queued and the loop moves on. When any entry failed
// the returned error aggregates all of the failures.
func (q *Queue) SyncAll(ctx context.Context) (SyncResult, error) {
	q.syncMu.Lock()
	defer q.syncMu.Unlock()
	var result SyncResult
	entries, err := q.List(ctx)
	if err != nil {
		return result, err
	}
	var errs error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, e)
			errs = multierr.Append(errs, err)
			continue
		}
		if err := q.remote.Merge(ctx, e.Collection, e.DocID, e.Payload); err != nil {
			q.logger.Warnw("pending write failed to sync", "collection", e.Collection, "docId", e.DocID, "error", err)
			result.Failed = append(result.Failed, e)
			errs = multierr.Append(errs, fmt.Errorf("%s/%s: %v", e.Collection, e.DocID, err))
			continue
		}
		if err := q.remove(ctx, e); err != nil {
			result.Failed = append(result.Failed, e)
			errs = multierr.Append(errs, err)
			continue
		}
		result.Synced++
	}
	q.logger.Infow("pending writes synced", "synced", result.Synced, "failed", len(result.Failed))
	if errs != nil {
		return result, fmt.Errorf("failed to sync %d of %d pending writes: %v", len(result.Failed), len(entries), errs)
	}
	return result, nil
}

// remove deletes the entry unless it was overwritten after it was
// read, in which case the newer payload stays queued.
func (q *Queue) remove(ctx context.Context, e Entry) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM pending_writes WHERE seq = ? AND version = ?`, e.seq, e.version)
	if err != nil {
		return fmt.Errorf("failed to remove synced write [%s/%s], error %v", e.Collection, e.DocID, err)
	}
	return nil
}

// SaveOrEnqueue merges payload into the remote document and falls back
// to the queue when the remote write fails. It reports whether the
// write reached the remote store.
func (q *Queue) SaveOrEnqueue(ctx context.Context, collection, docID string, payload docstore.Document) (bool, error) {
	err := q.remote.Merge(ctx, collection, docID, payload)
	if err == nil {
		return true, nil
	}
	q.logger.Warnw("remote write failed, using offline fallback", "collection", collection, "docId", docID, "error", err)
	queued := docstore.Overlay(payload, docstore.Document{LastUpdatedField: millis(q.now())})
	if err := q.Enqueue(ctx, docID, collection, queued); err != nil {
		return false, err
	}
	return false, nil
}

func encodePayload(payload docstore.Document) ([]byte, error) {
	s, err := structpb.NewStruct(payload.Plain())
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func decodePayload(b []byte) (docstore.Document, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	doc := docstore.FromPlain(s.AsMap())
	if doc == nil {
		doc = docstore.Document{}
	}
	return doc, nil
}

// Pending returns the queued entry for (docID, collection), if any.
func (q *Queue) Pending(ctx context.Context, docID, collection string) (Entry, bool, error) {
	var e Entry
	var b []byte
	err := q.db.QueryRowContext(ctx, `
		SELECT seq, version, doc_id, collection, payload, last_updated
		FROM pending_writes WHERE doc_id = ? AND collection = ?
	`, docID, collection).Scan(&e.seq, &e.version, &e.DocID, &e.Collection, &b, &e.LastUpdated)
	if err == sql.ErrNoRows {
		return e, false, nil
	}
	if err != nil {
		return e, false, fmt.Errorf("failed to read pending write [%s/%s], error %v", collection, docID, err)
	}
	if e.Payload, err = decodePayload(b); err != nil {
		return e, false, fmt.Errorf("failed to decode pending write [%s/%s], error %v", collection, docID, err)
	}
	return e, true, nil
}
