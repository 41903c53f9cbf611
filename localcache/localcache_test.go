package localcache

import (
	"context"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("expected err nil when opening cache, got %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)
	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("expected missing key to report ok=false and err nil, got ok=%v err=%v", ok, err)
	}
	if err := c.Put(ctx, "k", "one"); err != nil {
		t.Fatalf("expected err nil on put, got %v", err)
	}
	if err := c.Put(ctx, "k", "two"); err != nil {
		t.Fatalf("expected err nil on overwrite, got %v", err)
	}
	v, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || v != "two" {
		t.Errorf("expected two, got %q ok=%v err=%v", v, ok, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("expected err nil on delete, got %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Errorf("expected key to be deleted")
	}
}

func TestJSON(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)
	in := map[string]interface{}{"name": "सुनील", "boothNumber": "12"}
	if err := c.PutJSON(ctx, VoterKey("XYZ1234567"), in); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	var out map[string]interface{}
	ok, err := c.GetJSON(ctx, "voter_XYZ1234567", &out)
	if err != nil || !ok {
		t.Fatalf("expected cached voter, got ok=%v err=%v", ok, err)
	}
	if out["name"] != "सुनील" || out["boothNumber"] != "12" {
		t.Errorf("unexpected cached value %v", out)
	}
}

func TestReopenKeepsValues(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if err := c.Put(ctx, "candidateInfo", "{}"); err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	c.Close()
	c, err = Open(path)
	if err != nil {
		t.Fatalf("expected err nil on reopen, got %v", err)
	}
	defer c.Close()
	if _, ok, _ := c.Get(ctx, "candidateInfo"); !ok {
		t.Errorf("expected value to survive reopen")
	}
}
