package dedup

import (
	"context"
	"errors"
	"testing"
)

type fakeCounter struct {
	known   map[string]bool
	err     error
	queried []string
}

func (f *fakeCounter) CountKnownURLs(_ context.Context, urls []string) (int64, error) {
	f.queried = urls
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, u := range urls {
		if f.known[u] {
			n++
		}
	}
	return n, nil
}

func TestPageKnownAllStored(t *testing.T) {
	g := NewGate(&fakeCounter{known: map[string]bool{"a": true, "b": true}})
	known, err := g.PageKnown(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("PageKnown: %v", err)
	}
	if !known {
		t.Error("fully stored page should be known")
	}
}

func TestPageKnownPartiallyStored(t *testing.T) {
	g := NewGate(&fakeCounter{known: map[string]bool{"a": true}})
	known, err := g.PageKnown(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("PageKnown: %v", err)
	}
	if known {
		t.Error("page with one new listing must not be skipped")
	}
}

func TestPageKnownIgnoresEmptyURLs(t *testing.T) {
	counter := &fakeCounter{known: map[string]bool{"a": true}}
	g := NewGate(counter)

	known, err := g.PageKnown(context.Background(), []string{"a", "", ""})
	if err != nil {
		t.Fatalf("PageKnown: %v", err)
	}
	if !known {
		t.Error("blank URLs should not block the skip")
	}
	if len(counter.queried) != 1 || counter.queried[0] != "a" {
		t.Errorf("queried = %v, want [a]", counter.queried)
	}
}

func TestPageKnownEmptyList(t *testing.T) {
	counter := &fakeCounter{}
	g := NewGate(counter)

	known, err := g.PageKnown(context.Background(), nil)
	if err != nil {
		t.Fatalf("PageKnown: %v", err)
	}
	if known {
		t.Error("an empty page is never known")
	}
	if counter.queried != nil {
		t.Error("store should not be queried for an empty page")
	}
}

func TestPageKnownPropagatesError(t *testing.T) {
	g := NewGate(&fakeCounter{err: errors.New("db locked")})
	if _, err := g.PageKnown(context.Background(), []string{"a"}); err == nil {
		t.Error("expected counter error to propagate")
	}
}
