package orderstore

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStore_SetAndReadOrder(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if got, err := s.Order(ctx, "/docs"); err != nil || got != nil {
		t.Fatalf("empty store: %v, %v", got, err)
	}

	if err := s.SetOrder(ctx, "/docs", []string{"c", "a", "b"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetOrder(ctx, "/src", []string{"main.go"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Order(ctx, "/docs")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"c", "a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order=%v, want %v", got, want)
	}

	// Replacing drops names that are no longer listed.
	if err := s.SetOrder(ctx, "/docs", []string{"b", "c"}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Order(ctx, "/docs")
	if want := []string{"b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("after replace: %v, want %v", got, want)
	}

	folders, err := s.Folders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"/docs", "/src"}; !reflect.DeepEqual(folders, want) {
		t.Errorf("folders=%v", folders)
	}

	if err := s.Forget(ctx, "/docs"); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Order(ctx, "/docs"); got != nil {
		t.Errorf("forgotten folder still has %v", got)
	}
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "order.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetOrder(ctx, "/x", []string{"2", "1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path()=%q", s.Path())
	}
	got, err := s.Order(ctx, "/x")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"2", "1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order=%v, want %v", got, want)
	}
}

func TestArrange(t *testing.T) {
	tests := []struct {
		name   string
		names  []string
		stored []string
		want   []string
	}{
		{"no_stored_order", []string{"b", "c", "a"}, nil, []string{"a", "b", "c"}},
		{"full_order", []string{"a", "b", "c"}, []string{"c", "a", "b"}, []string{"c", "a", "b"}},
		{"new_entries_append_sorted", []string{"a", "z", "b", "m"}, []string{"b", "a"}, []string{"b", "a", "m", "z"}},
		{"stale_stored_names", []string{"a", "b"}, []string{"gone", "b", "a"}, []string{"b", "a"}},
		{"duplicate_stored", []string{"a", "b"}, []string{"b", "a", "b"}, []string{"b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Arrange(tt.names, tt.stored); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Arrange(%v, %v)=%v, want %v", tt.names, tt.stored, got, tt.want)
			}
		})
	}
}
