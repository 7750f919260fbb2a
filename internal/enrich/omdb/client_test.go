package omdb_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"projector/internal/enrich/omdb"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := omdb.New("", "https://example.com"); err == nil {
		t.Fatal("expected error when api key missing")
	}
}

func TestByTitleSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "key" {
			t.Fatalf("expected apikey query parameter, got %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("t") != "Heat" || r.URL.Query().Get("y") != "1995" {
			t.Fatalf("unexpected query: %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Title":"Heat","Year":"1995","Director":"Michael Mann","imdbID":"tt0113277","Response":"True"}`))
	}))
	t.Cleanup(server.Close)

	client, err := omdb.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	payload, err := client.ByTitle(context.Background(), "Heat", 1995)
	if err != nil {
		t.Fatalf("ByTitle returned error: %v", err)
	}
	if payload == nil || payload.Director != "Michael Mann" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if year, ok := payload.ParsedYear(); !ok || year != 1995 {
		t.Fatalf("unexpected parsed year: %d %v", year, ok)
	}
}

func TestByTitleNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
	}))
	t.Cleanup(server.Close)

	client, err := omdb.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	payload, err := client.ByTitle(context.Background(), "No Such Film", 0)
	if err != nil {
		t.Fatalf("definitive miss should not be an error: %v", err)
	}
	if payload != nil {
		t.Fatalf("expected nil payload for not found, got %#v", payload)
	}
}

func TestByTitleServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client, err := omdb.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = client.ByTitle(context.Background(), "Heat", 0)
	var statusErr *omdb.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected StatusError 503, got %v", err)
	}
}

func TestByTitleUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client, err := omdb.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := client.ByTitle(context.Background(), "Heat", 0); !errors.Is(err, omdb.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSearchLimitReachedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Request limit reached!"}`))
	}))
	t.Cleanup(server.Close)

	client, err := omdb.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := client.Search(context.Background(), "Heat", 0); !errors.Is(err, omdb.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for limit body, got %v", err)
	}
}

func TestSearchReturnsRankedCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("s") != "Heat" {
			t.Fatalf("unexpected query: %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"Response":"True","Search":[{"Title":"Heat","Year":"1995","imdbID":"tt0113277"},{"Title":"Heat","Year":"1986","imdbID":"tt0091255"}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := omdb.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	results, err := client.Search(context.Background(), "Heat", 0)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 2 || results[0].IMDbID != "tt0113277" {
		t.Fatalf("unexpected results: %#v", results)
	}
}

func TestByTitleEmptyTitle(t *testing.T) {
	client, err := omdb.New("key", "https://example.com")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.ByTitle(context.Background(), "   ", 0); err == nil {
		t.Fatal("expected error for empty title")
	}
}
