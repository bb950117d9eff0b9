package attribution

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/StevenVC-P/autographreader/internal/config"
)

func lookupServer(t *testing.T, handler http.HandlerFunc) *LookupClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewLookupClient(config.LookupConfig{
		Endpoint: srv.URL,
		Language: "en",
		Timeout:  2 * time.Second,
	})
}

func TestSearchReturnsFirstLabel(t *testing.T) {
	var gotQuery map[string]string
	client := lookupServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"action":   q.Get("action"),
			"format":   q.Get("format"),
			"language": q.Get("language"),
			"search":   q.Get("search"),
		}
		w.Write([]byte(`{"search":[{"label":"John Public"},{"label":"John Public Jr."}]}`))
	})

	label, found, err := client.Search(context.Background(), "john public autograph")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !found || label != "John Public" {
		t.Fatalf("Search = (%q, %v), want (John Public, true)", label, found)
	}
	want := map[string]string{
		"action":   "wbsearchentities",
		"format":   "json",
		"language": "en",
		"search":   "john public autograph",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestSearchNoResults(t *testing.T) {
	client := lookupServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"search":[]}`))
	})

	label, found, err := client.Search(context.Background(), "gibberish")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if found || label != "" {
		t.Fatalf("Search = (%q, %v), want empty miss", label, found)
	}
}

func TestSearchBlankLabelIsMiss(t *testing.T) {
	client := lookupServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"search":[{"label":"   "}]}`))
	})

	_, found, err := client.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if found {
		t.Error("blank label should be reported as a miss")
	}
}

func TestSearchNon200IsError(t *testing.T) {
	client := lookupServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	if _, _, err := client.Search(context.Background(), "anything"); err == nil {
		t.Error("expected error for non-200 response")
	}
}
