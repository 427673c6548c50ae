package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSnapshotClient_Fetch(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/home" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"alice's node"}`))
	}))
	defer backend.Close()

	client := NewSnapshotClient(time.Second)
	data, err := client.Fetch(context.Background(), testInstance(backend.URL), "home")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != `{"title":"alice's node"}` {
		t.Fatalf("unexpected document %s", data)
	}
}

func TestSnapshotClient_Fetch_ErrorStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer backend.Close()

	client := NewSnapshotClient(time.Second)
	if _, err := client.Fetch(context.Background(), testInstance(backend.URL), "home"); err == nil {
		t.Fatal("expected an error on 404")
	}
}

func TestSnapshotClient_Fetch_Unreachable(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	client := NewSnapshotClient(time.Second)
	if _, err := client.Fetch(context.Background(), testInstance(backend.URL), "home"); err == nil {
		t.Fatal("expected an error on unreachable backend")
	}
}
