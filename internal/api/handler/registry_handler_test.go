package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/exposehub/expose-gateway/internal/core/domain"
	"github.com/exposehub/expose-gateway/internal/core/ports"
	"github.com/exposehub/expose-gateway/internal/infrastructure/queue"
)

type stubRegistryService struct {
	registerFn   func(ctx context.Context, input ports.RegisterInput) (*domain.Instance, error)
	heartbeatFn  func(ctx context.Context, token string, snapshots map[string]json.RawMessage) (*domain.Instance, error)
	deregisterFn func(ctx context.Context, token string) error
	listOnlineFn func(ctx context.Context) ([]ports.InstanceSummary, error)
	listOwnerFn  func(ctx context.Context, ownerID string) ([]*domain.Instance, error)
}

func (s *stubRegistryService) Register(ctx context.Context, input ports.RegisterInput) (*domain.Instance, error) {
	return s.registerFn(ctx, input)
}

func (s *stubRegistryService) Heartbeat(ctx context.Context, token string, snapshots map[string]json.RawMessage) (*domain.Instance, error) {
	return s.heartbeatFn(ctx, token, snapshots)
}

func (s *stubRegistryService) Deregister(ctx context.Context, token string) error {
	return s.deregisterFn(ctx, token)
}

func (s *stubRegistryService) Lookup(context.Context, string) (*domain.Instance, error) {
	panic("not used")
}

func (s *stubRegistryService) ListOnline(ctx context.Context) ([]ports.InstanceSummary, error) {
	return s.listOnlineFn(ctx)
}

func (s *stubRegistryService) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Instance, error) {
	return s.listOwnerFn(ctx, ownerID)
}

type stubRefreshQueue struct {
	jobs []queue.RefreshJob
}

func (q *stubRefreshQueue) Enqueue(job queue.RefreshJob) {
	q.jobs = append(q.jobs, job)
}

func newTestContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRegistryHandler_Register_Success(t *testing.T) {
	stub := &stubRegistryService{
		registerFn: func(_ context.Context, input ports.RegisterInput) (*domain.Instance, error) {
			if input.Username != "alice" || input.Endpoint != "http://10.0.0.5:8000" {
				t.Fatalf("unexpected input: %+v", input)
			}
			return &domain.Instance{
				OwnerID:       input.OwnerID,
				Username:      input.Username,
				Endpoint:      input.Endpoint,
				Token:         "tok_123",
				LastHeartbeat: time.Now().UTC(),
			}, nil
		},
	}
	h := NewRegistryHandler(stub, nil)

	c, rec := newTestContext(t, http.MethodPost, "/register",
		`{"owner_id":"op_1","username":"alice","endpoint":"http://10.0.0.5:8000"}`)

	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["token"] != "tok_123" {
		t.Fatalf("token missing from response: %v", resp)
	}
	if resp["username"] != "alice" {
		t.Fatalf("unexpected payload: %v", resp)
	}
}

func TestRegistryHandler_Register_MissingEndpoint(t *testing.T) {
	h := NewRegistryHandler(&stubRegistryService{}, nil)

	c, _ := newTestContext(t, http.MethodPost, "/register",
		`{"owner_id":"op_1","username":"alice"}`)

	err := h.Register(c)
	var he *echo.HTTPError
	if err == nil || !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestRegistryHandler_Register_InvalidEndpointURL(t *testing.T) {
	h := NewRegistryHandler(&stubRegistryService{}, nil)

	c, _ := newTestContext(t, http.MethodPost, "/register",
		`{"owner_id":"op_1","username":"alice","endpoint":"not a url"}`)

	err := h.Register(c)
	var he *echo.HTTPError
	if err == nil || !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestRegistryHandler_Heartbeat_EnqueuesRefresh(t *testing.T) {
	stub := &stubRegistryService{
		heartbeatFn: func(_ context.Context, token string, snapshots map[string]json.RawMessage) (*domain.Instance, error) {
			if token != "tok_123" {
				t.Fatalf("unexpected token %q", token)
			}
			if _, ok := snapshots["home"]; !ok {
				t.Fatal("inline snapshot not passed through")
			}
			return &domain.Instance{Username: "alice", Token: token}, nil
		},
	}
	refresher := &stubRefreshQueue{}
	h := NewRegistryHandler(stub, refresher)

	c, rec := newTestContext(t, http.MethodPost, "/heartbeat/tok_123",
		`{"snapshots":{"home":{"title":"hi"}},"refresh":["files","behaviors"]}`)
	c.SetParamNames("token")
	c.SetParamValues("tok_123")

	if err := h.Heartbeat(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if len(refresher.jobs) != 1 {
		t.Fatalf("expected one refresh job, got %d", len(refresher.jobs))
	}
	job := refresher.jobs[0]
	if job.Username != "alice" || len(job.Kinds) != 2 {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestRegistryHandler_Heartbeat_EmptyBody(t *testing.T) {
	stub := &stubRegistryService{
		heartbeatFn: func(_ context.Context, token string, snapshots map[string]json.RawMessage) (*domain.Instance, error) {
			if len(snapshots) != 0 {
				t.Fatalf("expected no snapshots, got %v", snapshots)
			}
			return &domain.Instance{Username: "alice", Token: token}, nil
		},
	}
	refresher := &stubRefreshQueue{}
	h := NewRegistryHandler(stub, refresher)

	c, rec := newTestContext(t, http.MethodPost, "/heartbeat/tok_123", "")
	c.SetParamNames("token")
	c.SetParamValues("tok_123")

	if err := h.Heartbeat(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(refresher.jobs) != 0 {
		t.Fatal("empty body must not enqueue refresh jobs")
	}
}

func TestRegistryHandler_Heartbeat_UnknownToken(t *testing.T) {
	stub := &stubRegistryService{
		heartbeatFn: func(context.Context, string, map[string]json.RawMessage) (*domain.Instance, error) {
			return nil, domain.ErrInstanceNotFound
		},
	}
	h := NewRegistryHandler(stub, nil)

	c, _ := newTestContext(t, http.MethodPost, "/heartbeat/bogus", "")
	c.SetParamNames("token")
	c.SetParamValues("bogus")

	// The domain error propagates; the central error handler maps it to 404.
	if err := h.Heartbeat(c); !errors.Is(err, domain.ErrInstanceNotFound) {
		t.Fatalf("expected ErrInstanceNotFound, got %v", err)
	}
}

func TestRegistryHandler_Deregister(t *testing.T) {
	var gotToken string
	stub := &stubRegistryService{
		deregisterFn: func(_ context.Context, token string) error {
			gotToken = token
			return nil
		},
	}
	h := NewRegistryHandler(stub, nil)

	c, rec := newTestContext(t, http.MethodDelete, "/deregister/tok_123", "")
	c.SetParamNames("token")
	c.SetParamValues("tok_123")

	if err := h.Deregister(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if gotToken != "tok_123" {
		t.Fatalf("token not passed through: %q", gotToken)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "deregistered") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRegistryHandler_ListOnline(t *testing.T) {
	stub := &stubRegistryService{
		listOnlineFn: func(context.Context) ([]ports.InstanceSummary, error) {
			return []ports.InstanceSummary{
				{Username: "alice", Endpoint: "http://10.0.0.5:8000"},
			}, nil
		},
	}
	h := NewRegistryHandler(stub, nil)

	c, rec := newTestContext(t, http.MethodGet, "/", "")
	if err := h.ListOnline(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 1 || resp[0]["username"] != "alice" {
		t.Fatalf("unexpected listing %v", resp)
	}
	if _, ok := resp[0]["token"]; ok {
		t.Fatal("public listing leaked a token")
	}
}

func TestRegistryHandler_ListMine(t *testing.T) {
	stub := &stubRegistryService{
		listOwnerFn: func(_ context.Context, ownerID string) ([]*domain.Instance, error) {
			if ownerID != "op_1" {
				t.Fatalf("unexpected owner %q", ownerID)
			}
			return []*domain.Instance{
				{OwnerID: "op_1", Username: "alice", Endpoint: "http://10.0.0.5:8000", Token: "tok_123"},
			}, nil
		},
	}
	h := NewRegistryHandler(stub, nil)

	c, rec := newTestContext(t, http.MethodGet, "/instances/mine", "")
	c.Set("operator_id", "op_1")

	if err := h.ListMine(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 1 || resp[0]["token"] != "tok_123" {
		t.Fatalf("owner listing must include the token: %v", resp)
	}
}
