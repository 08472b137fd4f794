package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/albumvault/albumsheets/internal/shared"
)

func newPostgRESTServer(t *testing.T, total int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon-key" || r.Header.Get("Authorization") != "Bearer anon-key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid API key"}`))
			return
		}

		switch r.URL.Path {
		case "/rest/v1/albums":
		case "/rest/v1/history":
			w.Write([]byte(`[{"id":1,"artist_name":"Sun Ra"},{"id":2,"artist_name":"Alice Coltrane"}]`))
			return
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"relation does not exist"}`))
			return
		}

		if r.Method == http.MethodHead {
			if r.Header.Get("Prefer") == "count=exact" {
				w.Header().Set("Content-Range", fmt.Sprintf("*/%d", total))
			}
			return
		}

		if got := r.URL.Query().Get("order"); got != "id.asc" {
			t.Errorf("expected order id.asc, got %s", got)
		}

		var from, to int
		if _, err := fmt.Sscanf(r.Header.Get("Range"), "%d-%d", &from, &to); err != nil {
			t.Errorf("bad Range header %q", r.Header.Get("Range"))
		}
		if from >= total {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}

		var items []string
		for id := from + 1; id <= min(to+1, total); id++ {
			items = append(items, fmt.Sprintf(`{"id":%d,"title":"Album %d"}`, id, id))
		}
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("[" + strings.Join(items, ",") + "]"))
	}))
}

func TestPostgRESTSource(t *testing.T) {
	server := newPostgRESTServer(t, 7)
	defer server.Close()

	src := NewPostgRESTSource(PostgRESTOptions{BaseURL: server.URL + "/", APIKey: "anon-key", Table: "albums"})
	ctx := context.Background()

	t.Run("Name", func(t *testing.T) {
		if src.Name() != "postgrest" {
			t.Errorf("expected postgrest, got %s", src.Name())
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := src.Ping(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Count", func(t *testing.T) {
		n, err := src.Count(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != 7 {
			t.Errorf("expected 7, got %d", n)
		}
	})

	t.Run("FetchRange", func(t *testing.T) {
		recs, err := src.FetchRange(ctx, 3, 3, "id")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(recs) != 3 {
			t.Fatalf("expected 3 records, got %d", len(recs))
		}
		if got := recs[0].Key().Text(); got != "4" {
			t.Errorf("expected first id 4, got %s", got)
		}
	})

	t.Run("FetchRange short last page", func(t *testing.T) {
		recs, err := src.FetchRange(ctx, 6, 3, "id")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(recs) != 1 {
			t.Errorf("expected 1 record, got %d", len(recs))
		}
	})

	t.Run("FetchRange past the end is empty", func(t *testing.T) {
		recs, err := src.FetchRange(ctx, 9, 3, "id")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("expected empty page, got %d", len(recs))
		}
	})

	t.Run("FetchAll", func(t *testing.T) {
		recs, err := src.FetchAll(ctx, "history")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(recs) != 2 {
			t.Errorf("expected 2 records, got %d", len(recs))
		}
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := src.FetchAll(ctx, "nope")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if !strings.Contains(err.Error(), "relation does not exist") {
			t.Errorf("expected server message in error, got %v", err)
		}
	})

	t.Run("bad key", func(t *testing.T) {
		bad := NewPostgRESTSource(PostgRESTOptions{BaseURL: server.URL, APIKey: "wrong", Table: "albums"})
		if err := bad.Ping(ctx); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestParseContentRangeTotal(t *testing.T) {
	tc := []struct {
		header  string
		want    int
		wantErr bool
	}{
		{header: "0-24/1234", want: 1234},
		{header: "*/0", want: 0},
		{header: "0-24/*", wantErr: true},
		{header: "", wantErr: true},
		{header: "0-1/abc", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.header, func(t *testing.T) {
			got, err := parseContentRangeTotal(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
