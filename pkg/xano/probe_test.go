package xano

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"muebles/internal/models"
)

// upstream is a fake Xano workspace. Routes are keyed "METHOD /path"; any
// other request gets Xano's routing error.
type upstream struct {
	t      *testing.T
	mu     sync.Mutex
	calls  []string
	bodies map[string][]byte
	routes map[string]http.HandlerFunc
	srv    *httptest.Server
}

func newUpstream(t *testing.T, routes map[string]http.HandlerFunc) *upstream {
	u := &upstream{t: t, routes: routes, bodies: map[string][]byte{}}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.calls = append(u.calls, key)
		u.bodies[key] = body
		u.mu.Unlock()
		if h, ok := u.routes[key]; ok {
			h(w, r)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "ERROR_CODE_NOT_FOUND", "message": "Unable to locate request."})
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) config() Config {
	return Config{
		BaseURL:      u.srv.URL + "/api:general",
		AuthBaseURL:  u.srv.URL + "/api:auth",
		AdminBaseURL: u.srv.URL + "/api:admin",
		Timeout:      2 * time.Second,
	}
}

func (u *upstream) client() *Client {
	return NewClient(u.config(), zaptest.NewLogger(u.t))
}

func (u *upstream) Calls() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.calls...)
}

func (u *upstream) Body(key string) []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.bodies[key]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(status int, v interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { writeJSON(w, status, v) }
}

func TestProbe_StopsAtFirstSuccess(t *testing.T) {
	up := newUpstream(t, map[string]http.HandlerFunc{
		"GET /api:general/pedidos": respond(http.StatusOK, []interface{}{}),
		"GET /api:general/pedido":  respond(http.StatusOK, []interface{}{}),
	})
	c := up.client()

	cands := expand([]Group{GroupAuth, GroupGeneral}, []string{"pedidos", "pedido"}, func(res string) []Candidate {
		return []Candidate{{Method: http.MethodGet, Path: "/" + res}}
	})
	res := c.probe(context.Background(), "list", cands, "tok", nil, nil)

	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, []string{
		"GET /api:auth/pedidos",
		"GET /api:auth/pedido",
		"GET /api:general/pedidos",
	}, up.Calls())
	assert.Len(t, res.Attempts, 3)
}

func TestProbe_FatalStopsImmediately(t *testing.T) {
	up := newUpstream(t, map[string]http.HandlerFunc{
		"POST /api:auth/pedidos": respond(http.StatusBadRequest, map[string]string{"code": "ERROR_CODE_INPUT_ERROR", "message": "Missing param: usuario_id"}),
	})
	c := up.client()

	cands := expand([]Group{GroupAuth, GroupGeneral}, []string{"pedidos", "pedido"}, func(res string) []Candidate {
		return []Candidate{{Method: http.MethodPost, Path: "/" + res}}
	})
	res := c.probe(context.Background(), "create", cands, "tok", map[string]int{"a": 1}, nil)

	require.Equal(t, OutcomeFatal, res.Outcome)
	assert.True(t, errors.Is(res.Err, models.ErrValidation))
	assert.Equal(t, []string{"POST /api:auth/pedidos"}, up.Calls())
}

func TestProbe_RoutingHintMovesOn(t *testing.T) {
	up := newUpstream(t, map[string]http.HandlerFunc{
		"GET /api:auth/pedidos":    respond(http.StatusBadRequest, map[string]string{"message": "Route not found for this verb"}),
		"GET /api:general/pedidos": respond(http.StatusOK, map[string]int{"id": 1}),
	})
	c := up.client()

	cands := expand([]Group{GroupAuth, GroupGeneral}, []string{"pedidos"}, func(res string) []Candidate {
		return []Candidate{{Method: http.MethodGet, Path: "/" + res}}
	})
	res := c.probe(context.Background(), "get", cands, "", nil, nil)

	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Len(t, up.Calls(), 2)
}

func TestProbe_TimeoutIsShapeFailure(t *testing.T) {
	up := newUpstream(t, map[string]http.HandlerFunc{
		"GET /api:auth/pedidos": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			writeJSON(w, http.StatusOK, []interface{}{})
		},
		"GET /api:general/pedidos": respond(http.StatusOK, []interface{}{}),
	})
	cfg := up.config()
	cfg.Timeout = 50 * time.Millisecond
	c := NewClient(cfg, zaptest.NewLogger(t))

	cands := expand([]Group{GroupAuth, GroupGeneral}, []string{"pedidos"}, func(res string) []Candidate {
		return []Candidate{{Method: http.MethodGet, Path: "/" + res}}
	})
	res := c.probe(context.Background(), "list", cands, "", nil, nil)

	require.Equal(t, OutcomeSuccess, res.Outcome)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, OutcomeShapeFailure, res.Attempts[0].Outcome)
	assert.ErrorIs(t, res.Attempts[0].Err, context.DeadlineExceeded)
}

func TestProbe_SkipsDuplicateAndUnconfiguredGroups(t *testing.T) {
	up := newUpstream(t, nil)
	cfg := up.config()
	cfg.AuthBaseURL = cfg.BaseURL
	cfg.AdminBaseURL = ""
	c := NewClient(cfg, zaptest.NewLogger(t))

	cands := expand([]Group{GroupAdmin, GroupAuth, GroupGeneral}, []string{"pedidos"}, func(res string) []Candidate {
		return []Candidate{{Method: http.MethodGet, Path: "/" + res}}
	})
	res := c.probe(context.Background(), "list", cands, "", nil, nil)

	assert.Equal(t, OutcomeShapeFailure, res.Outcome)
	assert.Equal(t, []string{"GET /api:general/pedidos"}, up.Calls())
}

func TestProbe_CancelledContextIsFatal(t *testing.T) {
	up := newUpstream(t, nil)
	c := up.client()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.probe(ctx, "list", []Candidate{{Group: GroupGeneral, Method: http.MethodGet, Path: "/pedidos"}}, "", nil, nil)

	assert.Equal(t, OutcomeFatal, res.Outcome)
	assert.True(t, errors.Is(res.Err, context.Canceled))
	assert.Empty(t, up.Calls())
}

func TestClassify(t *testing.T) {
	c := NewClient(Config{}, nil)

	assert.Equal(t, OutcomeSuccess, c.classify(nil))
	assert.Equal(t, OutcomeShapeFailure, c.classify(&HTTPError{Status: http.StatusNotFound}))
	assert.Equal(t, OutcomeShapeFailure, c.classify(&HTTPError{Status: http.StatusMethodNotAllowed}))
	assert.Equal(t, OutcomeShapeFailure, c.classify(&HTTPError{Status: http.StatusBadRequest, Message: "ERROR_CODE_NOT_FOUND"}))
	assert.Equal(t, OutcomeShapeFailure, c.classify(&transportError{err: errors.New("connection refused")}))
	assert.Equal(t, OutcomeFatal, c.classify(&HTTPError{Status: http.StatusUnauthorized}))
	assert.Equal(t, OutcomeFatal, c.classify(&HTTPError{Status: http.StatusInternalServerError}))

	assert.Equal(t, OutcomeShapeFailure, c.lenient(&HTTPError{Status: http.StatusUnauthorized}))
	assert.Equal(t, OutcomeShapeFailure, c.lenient(&HTTPError{Status: http.StatusForbidden}))
	assert.Equal(t, OutcomeFatal, c.lenient(&HTTPError{Status: http.StatusBadGateway}))
}

func TestExhaustedError(t *testing.T) {
	last := &HTTPError{Status: http.StatusNotFound, Message: "Unable to locate request."}
	err := &ExhaustedError{Op: "create order", Attempts: []Attempt{
		{Candidate: Candidate{Method: http.MethodPost}, URL: "http://x/api:auth/pedidos", Outcome: OutcomeShapeFailure, Err: last},
	}}

	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusNotFound, herr.Status)
	assert.Contains(t, err.Error(), "POST http://x/api:auth/pedidos")
}
