package cache

import (
	"context"
	"encoding/json"
	"slices"
	"testing"

	"github.com/spf13/afero"
)

type record struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore("test", NewDirBackend(afero.NewMemMapFs(), "storage/test"))
	if err := s.Init(t.Context()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return s
}

func TestStore_SetGet(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	if err := s.Set(ctx, "processedPost-1", record{ID: 1, Text: "hello"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got record
	ok, err := s.Get(ctx, "processedPost-1", &got)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() reported absent for stored key")
	}
	if got != (record{ID: 1, Text: "hello"}) {
		t.Errorf("Get() = %+v", got)
	}
}

func TestStore_GetAbsent(t *testing.T) {
	s := newTestStore(t)

	got := record{ID: 7}
	ok, err := s.Get(t.Context(), "missing", &got)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() reported present for missing key")
	}
	if got.ID != 7 {
		t.Error("Get() should leave the target untouched when absent")
	}
}

func TestStore_SetOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	s.Set(ctx, "page-0", "first")
	s.Set(ctx, "page-0", "second")

	var got string
	if _, err := s.Get(ctx, "page-0", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "second" {
		t.Errorf("Get() = %q, want %q", got, "second")
	}

	keys, _ := s.Keys(ctx)
	if len(keys) != 1 {
		t.Errorf("Keys() = %v, want a single key", keys)
	}
}

func TestStore_RemoveAndHas(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	s.Set(ctx, "post-5", "<name>x</name>")
	if ok, _ := s.Has(ctx, "post-5"); !ok {
		t.Fatal("Has() = false after Set")
	}
	if err := s.Remove(ctx, "post-5"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if ok, _ := s.Has(ctx, "post-5"); ok {
		t.Error("Has() = true after Remove")
	}
	if err := s.Remove(ctx, "post-5"); err != nil {
		t.Errorf("Remove() of absent key error = %v", err)
	}
}

func TestStore_KeysAndValues(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	want := []string{"page-0", "page-1", "page-10", "weird key/with:chars"}
	for i, k := range want {
		if err := s.Set(ctx, k, record{ID: int64(i)}); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	slices.Sort(keys)
	if !slices.Equal(keys, want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}

	values, err := s.Values(ctx)
	if err != nil {
		t.Fatalf("Values() error = %v", err)
	}
	var ids []int64
	for _, v := range values {
		var r record
		if err := json.Unmarshal(v, &r); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", v, err)
		}
		ids = append(ids, r.ID)
	}
	slices.Sort(ids)
	if !slices.Equal(ids, []int64{0, 1, 2, 3}) {
		t.Errorf("Values() ids = %v", ids)
	}
}

func TestStore_InitIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	s.Set(ctx, "k", 1)

	if err := s.Init(ctx); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	if ok, _ := s.Has(ctx, "k"); !ok {
		t.Error("Init() must not drop existing entries")
	}
}

func TestStore_UnavailableStorageFails(t *testing.T) {
	ro := afero.NewReadOnlyFs(afero.NewMemMapFs())
	s := NewStore("ro", NewDirBackend(ro, "storage/ro"))
	ctx := context.Background()

	if err := s.Set(ctx, "k", 1); err == nil {
		t.Error("Set() on read-only storage should fail")
	}
	if _, err := s.Keys(ctx); err == nil {
		t.Error("Keys() on missing directory should fail")
	}
}

func TestStores_Isolated(t *testing.T) {
	stores := NewMemStores()
	ctx := t.Context()
	if err := stores.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	stores.Pages.Set(ctx, "page-0", "<html>")
	stores.Posts.Set(ctx, "post-1", "<id>1</id>")

	if ok, _ := stores.Posts.Has(ctx, "page-0"); ok {
		t.Error("posts store sees a pages key")
	}
	keys, _ := stores.Pages.Keys(ctx)
	if !slices.Equal(keys, []string{"page-0"}) {
		t.Errorf("pages keys = %v", keys)
	}
}
