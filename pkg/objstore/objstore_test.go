package objstore

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if err := store.Put(ctx, "raw-results/quina/100.json", []byte(`{"numero":100}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	body, err := store.Get(ctx, "raw-results/quina/100.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(body) != `{"numero":100}` {
		t.Errorf("Get = %s, want original body", body)
	}

	_, err = store.Get(ctx, "raw-results/quina/999.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestMemoryListPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	for _, key := range []string{
		"raw-results/quina/1.json",
		"raw-results/lotofacil/2.json",
		"lottery_results.db",
	} {
		if err := store.Put(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}

	keys, err := store.List(ctx, "raw-results/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"raw-results/lotofacil/2.json", "raw-results/quina/1.json"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("List = %v, want %v", keys, want)
	}
}

func TestProcessedState(t *testing.T) {
	tests := []struct {
		name   string
		tags   []Tag
		value  string
		tagged bool
	}{
		{"absent", nil, "", false},
		{"false", []Tag{{Key: "processed", Value: "false"}}, "false", true},
		{"true", []Tag{{Key: "other", Value: "x"}, {Key: "processed", Value: "true"}}, "true", true},
		{"unrelated only", []Tag{{Key: "other", Value: "x"}}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok := ProcessedState(tt.tags)
			if value != tt.value || ok != tt.tagged {
				t.Errorf("ProcessedState = %q, %v; want %q, %v", value, ok, tt.value, tt.tagged)
			}
		})
	}
}

func TestTagUnprocessed(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	key := "raw-results/quina/100.json"

	if err := store.Put(ctx, key, []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := TagUnprocessed(ctx, store, key); err != nil {
		t.Fatalf("TagUnprocessed failed: %v", err)
	}

	tags, err := store.GetTags(ctx, key)
	if err != nil {
		t.Fatalf("GetTags failed: %v", err)
	}
	value, ok := ProcessedState(tags)
	if !ok || value != "false" {
		t.Errorf("processed tag = %q, %v; want false, true", value, ok)
	}
}

func TestFlipProcessedPreservesUnrelatedTags(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	key := "raw-results/quina/100.json"

	if err := store.Put(ctx, key, []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	initial := []Tag{
		{Key: "source", Value: "caixa"},
		{Key: "processed", Value: "false"},
	}
	if err := store.PutTags(ctx, key, initial); err != nil {
		t.Fatalf("PutTags failed: %v", err)
	}

	if err := FlipProcessed(ctx, store, key, true); err != nil {
		t.Fatalf("FlipProcessed failed: %v", err)
	}

	tags, err := store.GetTags(ctx, key)
	if err != nil {
		t.Fatalf("GetTags failed: %v", err)
	}
	want := []Tag{
		{Key: "source", Value: "caixa"},
		{Key: "processed", Value: "true"},
	}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}
}

func TestFlipProcessedAddsMissingTag(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	key := "raw-results/quina/100.json"

	if err := store.Put(ctx, key, []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := FlipProcessed(ctx, store, key, false); err != nil {
		t.Fatalf("FlipProcessed failed: %v", err)
	}

	tags, _ := store.GetTags(ctx, key)
	value, ok := ProcessedState(tags)
	if !ok || value != "false" {
		t.Errorf("processed tag = %q, %v; want false, true", value, ok)
	}
}

func TestFlipProcessedTagFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	key := "raw-results/quina/100.json"

	if err := store.Put(ctx, key, []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	store.FailTags[key] = true

	if err := FlipProcessed(ctx, store, key, true); err == nil {
		t.Fatal("expected injected tag failure")
	}
}
