package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func allowListBackend(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/allowed_users" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestAccessClient_Membership(t *testing.T) {
	backend := allowListBackend(t, `{"allowed_users":["bob","carol"]}`)
	defer backend.Close()

	gate := NewAccessClient(time.Second, true, zerolog.Nop())
	inst := testInstance(backend.URL)

	if !gate.Allowed(context.Background(), inst, "bob") {
		t.Fatal("listed requester denied")
	}
	if gate.Allowed(context.Background(), inst, "mallory") {
		t.Fatal("unlisted requester allowed despite a non-empty list")
	}
	// Anonymous callers are just the empty requester; a non-empty list
	// excludes them too.
	if gate.Allowed(context.Background(), inst, "") {
		t.Fatal("anonymous requester allowed despite a non-empty list")
	}
}

func TestAccessClient_EmptyListAppliesDefault(t *testing.T) {
	backend := allowListBackend(t, `{"allowed_users":[]}`)
	defer backend.Close()
	inst := testInstance(backend.URL)

	open := NewAccessClient(time.Second, true, zerolog.Nop())
	if !open.Allowed(context.Background(), inst, "anyone") {
		t.Fatal("fail-open gate denied on empty list")
	}

	closed := NewAccessClient(time.Second, false, zerolog.Nop())
	if closed.Allowed(context.Background(), inst, "anyone") {
		t.Fatal("fail-closed gate allowed on empty list")
	}
}

func TestAccessClient_UnreachableAppliesDefault(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()
	inst := testInstance(backend.URL)

	open := NewAccessClient(time.Second, true, zerolog.Nop())
	if !open.Allowed(context.Background(), inst, "anyone") {
		t.Fatal("fail-open gate denied on unreachable backend")
	}

	closed := NewAccessClient(time.Second, false, zerolog.Nop())
	if closed.Allowed(context.Background(), inst, "anyone") {
		t.Fatal("fail-closed gate allowed on unreachable backend")
	}
}

func TestAccessClient_ErrorStatusAppliesDefault(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer backend.Close()
	inst := testInstance(backend.URL)

	open := NewAccessClient(time.Second, true, zerolog.Nop())
	if !open.Allowed(context.Background(), inst, "anyone") {
		t.Fatal("fail-open gate denied on backend error")
	}
}
