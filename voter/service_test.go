package voter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/janneta/canvass/docstore"
	"github.com/janneta/canvass/localcache"
	"github.com/janneta/canvass/pendingwrites"
	"go.uber.org/zap"
)

type fixture struct {
	svc   *Service
	store *docstore.MemoryStore
	cache *localcache.Cache
	queue *pendingwrites.Queue
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cache, err := localcache.Open(filepath.Join(t.TempDir(), "device.db"))
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	store := docstore.NewMemoryStore()
	logger := zap.NewNop().Sugar()
	queue := pendingwrites.New(cache.DB(), store, logger)
	svc := NewService(store, cache, queue, logger)
	svc.now = func() time.Time { return time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC) }
	return fixture{svc: svc, store: store, cache: cache, queue: queue}
}

func TestVoterKey(t *testing.T) {
	testCases := []struct {
		in       Voter
		expected string
	}{
		{Voter{ID: "doc1", VoterID: "ABC123"}, "doc1"},
		{Voter{VoterID: "ABC123"}, "ABC123"},
		{Voter{ID: "  ", VoterID: "ABC123"}, "ABC123"},
		{Voter{}, ""},
	}
	for _, tt := range testCases {
		if got := tt.in.Key(); got != tt.expected {
			t.Errorf("expected key %q, got %q", tt.expected, got)
		}
	}
}

func TestLookupPrefersCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Merge(ctx, docstore.VotersCollection, "V1", docstore.Document{"name": "Remote"})
	f.cache.PutJSON(ctx, localcache.VoterKey("V1"), map[string]interface{}{"name": "Cached", "age": 42})

	got, err := f.svc.Lookup(ctx, Voter{ID: "V1", Name: "Supplied", BoothNumber: "12"})
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if got.Name != "Cached" || got.Age != "42" || got.BoothNumber != "12" {
		t.Errorf("expected cached record over supplied one, got %+v", got)
	}
}

func TestLookupCachesRemoteRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Merge(ctx, docstore.VotersCollection, "V1", docstore.Document{"name": "Remote", "serialNumber": int64(7)})

	got, err := f.svc.Lookup(ctx, Voter{VoterID: "V1"})
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if got.Name != "Remote" || got.SerialNumber != "7" {
		t.Errorf("expected remote record, got %+v", got)
	}
	var cached map[string]interface{}
	ok, err := f.cache.GetJSON(ctx, localcache.VoterKey("V1"), &cached)
	if err != nil || !ok {
		t.Fatalf("expected voter to be cached, got ok=%v err=%v", ok, err)
	}
	if cached["name"] != "Remote" {
		t.Errorf("expected cached name Remote, got %v", cached["name"])
	}
}

func TestLookupFallsBackToSupplied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.SetOffline(errors.New("offline"))
	in := Voter{ID: "V9", Name: "Supplied"}
	got, err := f.svc.Lookup(ctx, in)
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("expected supplied record (-want +got):\n%s", diff)
	}
	if _, err := f.svc.Lookup(ctx, Voter{}); !errors.Is(err, ErrMissingID) {
		t.Errorf("expected ErrMissingID, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Get(context.Background(), "nope"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveContactUpdatesCachedMirror(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cache.PutJSON(ctx, localcache.VoterKey("V1"), map[string]interface{}{"name": "Ravi"})

	if err := f.svc.SaveContact(ctx, "V1", WhatsApp, "9876543210"); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	doc, _ := f.store.Get(ctx, docstore.VotersCollection, "V1")
	if doc.String("whatsapp") != "9876543210" {
		t.Errorf("expected remote whatsapp to be saved, got %v", doc)
	}
	var cached map[string]interface{}
	f.cache.GetJSON(ctx, localcache.VoterKey("V1"), &cached)
	if cached["whatsapp"] != "9876543210" || cached["name"] != "Ravi" {
		t.Errorf("expected cached mirror to be updated, got %v", cached)
	}

	if err := f.svc.SaveContact(ctx, "V2", Phone, "9123456789"); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if _, ok, _ := f.cache.Get(ctx, localcache.VoterKey("V2")); ok {
		t.Errorf("expected no mirror to be created for an uncached voter")
	}
	if err := f.svc.SaveContact(ctx, "V1", "email", "x"); !errors.Is(err, ErrInvalidContactKind) {
		t.Errorf("expected ErrInvalidContactKind, got %v", err)
	}
}

func TestSaveContactFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.SetOffline(errors.New("offline"))
	if err := f.svc.SaveContact(ctx, "V1", Phone, "9123456789"); err == nil {
		t.Errorf("expected an error when the remote store is unreachable")
	}
}

func TestResolveWhatsApp(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		name     string
		voter    Voter
		survey   docstore.Document
		root     docstore.Document
		expected string
		err      error
	}{
		{"own number", Voter{ID: "V", WhatsApp: "98765 43210"}, docstore.Document{"whatsapp": "9111111111"}, nil, "9876543210", nil},
		{"survey number", Voter{ID: "V", WhatsApp: "12345"}, docstore.Document{"whatsapp": "+91 9111111111"}, nil, "", ErrNoWhatsApp},
		{"survey ten digits", Voter{ID: "V"}, docstore.Document{"whatsapp": "9111111111"}, docstore.Document{"number": "9222222222"}, "9111111111", nil},
		{"root number", Voter{ID: "V"}, nil, docstore.Document{"number": "9222222222", "whatsapp": "9333333333"}, "9222222222", nil},
		{"root whatsapp", Voter{ID: "V"}, nil, docstore.Document{"number": "123", "whatsapp": "9333333333"}, "9333333333", nil},
		{"numeric root", Voter{ID: "V"}, nil, docstore.Document{"number": int64(9444444444)}, "9444444444", nil},
		{"none", Voter{ID: "V"}, nil, nil, "", ErrNoWhatsApp},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.survey != nil {
				f.store.Merge(ctx, docstore.SurveysCollection, "V", tt.survey)
			}
			if tt.root != nil {
				f.store.Merge(ctx, docstore.WhatsAppRootCollection, docstore.RootDocument, tt.root)
			}
			got, err := f.svc.ResolveWhatsApp(ctx, tt.voter)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected err %v, got %v", tt.err, err)
			}
			if got != tt.expected {
				t.Errorf("expected number %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAddMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m, saved, err := f.svc.AddMember(ctx, "HEAD", Member{VoterID: "A1"})
	if err != nil || !saved {
		t.Fatalf("expected online save, got saved=%v err=%v", saved, err)
	}
	if m.Name != "Unknown" || m.AddedAt != 1763629200000 {
		t.Errorf("expected defaulted name and addedAt, got %+v", m)
	}
	f.svc.AddMember(ctx, "HEAD", Member{VoterID: "B2", Name: "सीमा"})

	if _, _, err := f.svc.AddMember(ctx, "HEAD", Member{VoterID: "A1", Name: "again"}); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
	members, err := f.svc.Family(ctx, "HEAD")
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if len(members) != 2 || members[0].VoterID != "A1" || members[1].Name != "सीमा" {
		t.Errorf("expected two members in order, got %+v", members)
	}
	doc, _ := f.store.Get(ctx, docstore.SurveysCollection, "HEAD")
	if doc.Int64("lastUpdated") != 1763629200000 {
		t.Errorf("expected lastUpdated on the survey, got %v", doc["lastUpdated"])
	}
}

func TestRemoveLastMemberPersistsEmptyList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.AddMember(ctx, "HEAD", Member{VoterID: "A1", ID: "doc-a1"})
	if _, err := f.svc.RemoveMember(ctx, "HEAD", "doc-a1"); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	doc, err := f.store.Get(ctx, docstore.SurveysCollection, "HEAD")
	if err != nil {
		t.Fatalf("expected survey document to remain, got %v", err)
	}
	list, ok := doc["familyMembers"].([]interface{})
	if !ok || len(list) != 0 {
		t.Errorf("expected empty familyMembers list, got %#v", doc["familyMembers"])
	}
	if _, err := f.svc.RemoveMember(ctx, "HEAD", "A1"); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
}

func TestAddMemberOfflineIsQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.AddMember(ctx, "HEAD", Member{VoterID: "A1"})
	f.store.FailOn(docstore.SurveysCollection, "HEAD", errors.New("unavailable"))

	_, saved, err := f.svc.AddMember(ctx, "HEAD", Member{VoterID: "B2"})
	if err != nil || saved {
		t.Fatalf("expected queued write, got saved=%v err=%v", saved, err)
	}
	members, _ := f.svc.Family(ctx, "HEAD")
	if len(members) != 2 {
		t.Errorf("expected queued family to be visible, got %+v", members)
	}
	if _, _, err := f.svc.AddMember(ctx, "HEAD", Member{VoterID: "B2"}); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected queued member to count as duplicate, got %v", err)
	}

	f.store.FailOn(docstore.SurveysCollection, "HEAD", nil)
	if _, err := f.queue.SyncAll(ctx); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	doc, _ := f.store.Get(ctx, docstore.SurveysCollection, "HEAD")
	if list, _ := doc["familyMembers"].([]interface{}); len(list) != 2 {
		t.Errorf("expected synced family of 2, got %v", doc["familyMembers"])
	}
}

func TestAddMemberFullyOfflineIsQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.SetOffline(errors.New("unavailable"))

	_, saved, err := f.svc.AddMember(ctx, "HEAD", Member{VoterID: "A1"})
	if err != nil || saved {
		t.Fatalf("expected queued write, got saved=%v err=%v", saved, err)
	}
	if n, _ := f.queue.Len(ctx); n != 1 {
		t.Errorf("expected 1 queued write, got %d", n)
	}
	members, err := f.svc.Family(ctx, "HEAD")
	if err != nil || len(members) != 1 || members[0].VoterID != "A1" {
		t.Errorf("expected queued member to be listed, got %+v err %v", members, err)
	}
	if _, err := f.svc.RemoveMember(ctx, "HEAD", "A1"); err != nil {
		t.Errorf("expected queued removal, got %v", err)
	}

	f.store.SetOffline(nil)
	if _, err := f.queue.SyncAll(ctx); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	doc, _ := f.store.Get(ctx, docstore.SurveysCollection, "HEAD")
	if list, ok := doc["familyMembers"].([]interface{}); !ok || len(list) != 0 {
		t.Errorf("expected synced empty family, got %v", doc["familyMembers"])
	}
}

func TestAddMemberFillsIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m, _, err := f.svc.AddMember(ctx, "HEAD", Member{VoterID: "ABC1234567"})
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if m.ID != "ABC1234567" {
		t.Errorf("expected id filled from voterId, got %+v", m)
	}
	m, _, _ = f.svc.AddMember(ctx, "HEAD", Member{ID: "doc-b2"})
	if m.VoterID != "doc-b2" {
		t.Errorf("expected voterId filled from id, got %+v", m)
	}
	members, _ := f.svc.Family(ctx, "HEAD")
	if len(members) != 2 || members[0].ID != "ABC1234567" || members[1].VoterID != "doc-b2" {
		t.Errorf("expected stored ids, got %+v", members)
	}
}

func TestFamilyStoredAsObject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Merge(ctx, docstore.SurveysCollection, "HEAD", docstore.Document{
		"familyMembers": docstore.Document{
			"10": docstore.Document{"voterId": "C"},
			"2":  docstore.Document{"voterId": "B"},
			"1":  docstore.Document{"voterId": "A"},
		},
	})
	members, err := f.svc.Family(ctx, "HEAD")
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	var ids []string
	for _, m := range members {
		ids = append(ids, m.VoterID)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, ids); diff != "" {
		t.Errorf("unexpected member order (-want +got):\n%s", diff)
	}
}

func TestSaveSurveyWhatsApp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	saved, err := f.svc.SaveSurveyWhatsApp(ctx, "HEAD", "9876543210")
	if err != nil || !saved {
		t.Fatalf("expected online save, got saved=%v err=%v", saved, err)
	}
	got, err := f.svc.ResolveWhatsApp(ctx, Voter{ID: "HEAD"})
	if err != nil || got != "9876543210" {
		t.Errorf("expected survey number to resolve, got %q err %v", got, err)
	}
}
