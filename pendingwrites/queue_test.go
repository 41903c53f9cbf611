package pendingwrites

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/janneta/canvass/docstore"
	"github.com/janneta/canvass/localcache"
	"go.uber.org/zap"
)

func newQueue(t *testing.T) (*Queue, *docstore.MemoryStore) {
	t.Helper()
	cache, err := localcache.Open(filepath.Join(t.TempDir(), "device.db"))
	if err != nil {
		t.Fatalf("expected err nil when opening local cache, got %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	remote := docstore.NewMemoryStore()
	q := New(cache.DB(), remote, zap.NewNop().Sugar())
	clock := time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)
	q.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return q, remote
}

func TestEnqueueSameDocumentTwiceKeepsLatestPayload(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	if err := q.Enqueue(ctx, "V1", docstore.SurveysCollection, docstore.Document{"whatsapp": "1111111111"}); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if err := q.Enqueue(ctx, "V2", docstore.SurveysCollection, docstore.Document{"whatsapp": "3333333333"}); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if err := q.Enqueue(ctx, "V1", docstore.SurveysCollection, docstore.Document{"whatsapp": "2222222222"}); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	entries, err := q.List(ctx)
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].DocID != "V1" || entries[1].DocID != "V2" {
		t.Errorf("expected insertion order V1, V2, got %s, %s", entries[0].DocID, entries[1].DocID)
	}
	if diff := cmp.Diff(docstore.Document{"whatsapp": "2222222222"}, entries[0].Payload); diff != "" {
		t.Errorf("expected latest payload (-want +got):\n%s", diff)
	}
	if entries[0].LastUpdated <= entries[1].LastUpdated {
		t.Errorf("expected overwrite to refresh lastUpdated")
	}
}

func TestSameDocumentInOtherCollectionIsSeparate(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	q.Enqueue(ctx, "V1", docstore.SurveysCollection, docstore.Document{"a": "1"})
	q.Enqueue(ctx, "V1", docstore.VotersCollection, docstore.Document{"a": "2"})
	if n, _ := q.Len(ctx); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}
}

func TestPayloadSurvivesEncoding(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	payload := docstore.Document{
		"lastUpdated": int64(1732093200000),
		"familyMembers": []interface{}{
			docstore.Document{"voterId": "A1", "name": "सीमा", "addedAt": int64(1732093100000)},
		},
		"score": 2.5,
		"ok":    true,
	}
	if err := q.Enqueue(ctx, "H", docstore.SurveysCollection, payload); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	entries, _ := q.List(ctx)
	if diff := cmp.Diff(payload, entries[0].Payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncAllPartialFailure(t *testing.T) {
	ctx := context.Background()
	q, remote := newQueue(t)
	for _, id := range []string{"A", "B", "C"} {
		if err := q.Enqueue(ctx, id, docstore.SurveysCollection, docstore.Document{"whatsapp": id}); err != nil {
			t.Fatalf("expected err nil, got %v", err)
		}
	}
	remote.FailOn(docstore.SurveysCollection, "B", errors.New("deadline exceeded"))
	res, err := q.SyncAll(ctx)
	if err == nil {
		t.Errorf("expected an aggregated error when an entry fails")
	}
	if res.Synced != 2 || len(res.Failed) != 1 || res.Failed[0].DocID != "B" {
		t.Errorf("expected 2 synced and B failed, got %+v", res)
	}
	entries, _ := q.List(ctx)
	if len(entries) != 1 || entries[0].DocID != "B" {
		t.Fatalf("expected only B to remain queued, got %+v", entries)
	}
	for _, id := range []string{"A", "C"} {
		doc, err := remote.Get(ctx, docstore.SurveysCollection, id)
		if err != nil || doc.String("whatsapp") != id {
			t.Errorf("expected %s to be written remotely, got %v err %v", id, doc, err)
		}
	}

	remote.FailOn(docstore.SurveysCollection, "B", nil)
	res, err = q.SyncAll(ctx)
	if err != nil || res.Synced != 1 {
		t.Errorf("expected B to sync on the next run, got %+v err %v", res, err)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("expected empty queue, got %d", n)
	}
}

func TestSyncAllMergesIntoRemoteDocument(t *testing.T) {
	ctx := context.Background()
	q, remote := newQueue(t)
	remote.Merge(ctx, docstore.VotersCollection, "V", docstore.Document{"name": "Ravi"})
	q.Enqueue(ctx, "V", docstore.VotersCollection, docstore.Document{"phone": "9999999999"})
	if _, err := q.SyncAll(ctx); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	doc, _ := remote.Get(ctx, docstore.VotersCollection, "V")
	if doc.String("name") != "Ravi" || doc.String("phone") != "9999999999" {
		t.Errorf("expected merged document, got %v", doc)
	}
}

func TestSyncAllEmptyQueue(t *testing.T) {
	q, _ := newQueue(t)
	res, err := q.SyncAll(context.Background())
	if err != nil || res.Synced != 0 || len(res.Failed) != 0 {
		t.Errorf("expected no-op sync, got %+v err %v", res, err)
	}
}

func TestRemoveSkipsOverwrittenEntry(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	q.Enqueue(ctx, "V", docstore.SurveysCollection, docstore.Document{"n": "old"})
	entries, _ := q.List(ctx)
	q.Enqueue(ctx, "V", docstore.SurveysCollection, docstore.Document{"n": "new"})
	if err := q.remove(ctx, entries[0]); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	entries, _ = q.List(ctx)
	if len(entries) != 1 || entries[0].Payload.String("n") != "new" {
		t.Errorf("expected newer payload to stay queued, got %+v", entries)
	}
}

func TestSaveOrEnqueue(t *testing.T) {
	ctx := context.Background()
	q, remote := newQueue(t)
	saved, err := q.SaveOrEnqueue(ctx, docstore.SurveysCollection, "H", docstore.Document{"whatsapp": "9876543210"})
	if err != nil || !saved {
		t.Fatalf("expected online save, got saved=%v err=%v", saved, err)
	}
	remote.SetOffline(errors.New("offline"))
	saved, err = q.SaveOrEnqueue(ctx, docstore.SurveysCollection, "H", docstore.Document{"whatsapp": "9123456789"})
	if err != nil || saved {
		t.Fatalf("expected queued save, got saved=%v err=%v", saved, err)
	}
	entries, _ := q.List(ctx)
	if len(entries) != 1 {
		t.Fatalf("expected one queued entry, got %d", len(entries))
	}
	if entries[0].Payload.Int64(LastUpdatedField) == 0 {
		t.Errorf("expected queued payload to carry lastUpdated")
	}
	remote.SetOffline(nil)
	if _, err := q.SyncAll(ctx); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	doc, _ := remote.Get(ctx, docstore.SurveysCollection, "H")
	if doc.String("whatsapp") != "9123456789" {
		t.Errorf("expected queued number after sync, got %v", doc)
	}
}

func TestPending(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	if _, ok, err := q.Pending(ctx, "H", docstore.SurveysCollection); ok || err != nil {
		t.Errorf("expected no pending entry, got ok=%v err=%v", ok, err)
	}
	q.Enqueue(ctx, "H", docstore.SurveysCollection, docstore.Document{"whatsapp": "9876543210"})
	e, ok, err := q.Pending(ctx, "H", docstore.SurveysCollection)
	if err != nil || !ok {
		t.Fatalf("expected pending entry, got ok=%v err=%v", ok, err)
	}
	if e.Payload.String("whatsapp") != "9876543210" {
		t.Errorf("expected queued payload, got %v", e.Payload)
	}
}
