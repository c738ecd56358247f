package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/wardstock/internal/models"
	"github.com/wolfeidau/wardstock/internal/session"
)

// recordedRequest is what the fake API saw for one request.
type recordedRequest struct {
	Method        string
	Path          string
	Authorization []string
	RequestID     string
	Body          string
}

// fakeAPI imitates the inventory API server: JWT style token endpoints and
// a handful of resources guarded by a single valid access token.
type fakeAPI struct {
	server *httptest.Server

	mu             sync.Mutex
	validToken     string
	newAccess      string
	rotatedRefresh string
	refreshStatus  int
	refreshDelay   time.Duration
	rejectAll      bool
	refreshCalls   int
	refreshTokens  []string
	requests       []recordedRequest
	routes         map[string]http.HandlerFunc
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	api := &fakeAPI{
		validToken: "abc",
		newAccess:  "new",
		routes:     make(map[string]http.HandlerFunc),
	}
	api.server = httptest.NewServer(http.HandlerFunc(api.serveHTTP))
	t.Cleanup(api.server.Close)

	return api
}

func (a *fakeAPI) URL() string {
	return a.server.URL + "/api"
}

// handle registers a resource handler, only reached with a valid token.
func (a *fakeAPI) handle(path string, fn http.HandlerFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes[path] = fn
}

func (a *fakeAPI) setValidToken(token string) {
	a.configure(func(a *fakeAPI) { a.validToken = token })
}

// configure changes the fake's behaviour under its lock.
func (a *fakeAPI) configure(fn func(a *fakeAPI)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a)
}

func (a *fakeAPI) refreshTokensSeen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.refreshTokens...)
}

func (a *fakeAPI) refreshCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshCalls
}

func (a *fakeAPI) requestsTo(path string) []recordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []recordedRequest
	for _, r := range a.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (a *fakeAPI) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	path := strings.TrimPrefix(r.URL.Path, "/api/")

	a.mu.Lock()
	a.requests = append(a.requests, recordedRequest{
		Method:        r.Method,
		Path:          path,
		Authorization: r.Header.Values("Authorization"),
		RequestID:     r.Header.Get("X-Request-Id"),
		Body:          string(body),
	})
	a.mu.Unlock()

	switch path {
	case "token/":
		a.serveToken(w, body)
	case "token/refresh/":
		a.serveRefresh(w, body)
	case "register/":
		var in RegisterRequest
		_ = json.Unmarshal(body, &in)
		if in.Username == "taken" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"username": []string{"A user with that username already exists."},
			})
			return
		}
		writeJSON(w, http.StatusCreated, models.User{ID: 2, Username: in.Username, Email: in.Email, Role: in.Role, HospitalName: in.HospitalName})
	default:
		a.serveResource(w, r, path)
	}
}

func (a *fakeAPI) serveToken(w http.ResponseWriter, body []byte) {
	var creds Credentials
	_ = json.Unmarshal(body, &creds)
	if creds.Username != "alice" || creds.Password != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "No active account found with the given credentials",
		})
		return
	}

	a.mu.Lock()
	token := a.validToken
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, TokenPair{Access: token, Refresh: "rtok"})
}

func (a *fakeAPI) serveRefresh(w http.ResponseWriter, body []byte) {
	var in refreshRequest
	_ = json.Unmarshal(body, &in)

	a.mu.Lock()
	a.refreshCalls++
	a.refreshTokens = append(a.refreshTokens, in.Refresh)
	status, delay := a.refreshStatus, a.refreshDelay
	a.mu.Unlock()

	time.Sleep(delay)

	if status != 0 {
		writeJSON(w, status, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}

	a.mu.Lock()
	a.validToken = a.newAccess
	resp := refreshResponse{Access: a.newAccess, Refresh: a.rotatedRefresh}
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (a *fakeAPI) serveResource(w http.ResponseWriter, r *http.Request, path string) {
	a.mu.Lock()
	authorized := !a.rejectAll && r.Header.Get("Authorization") == "Bearer "+a.validToken
	route := a.routes[path]
	a.mu.Unlock()

	if !authorized {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Given token not valid for any token type",
			"code":   "token_not_valid",
		})
		return
	}

	switch {
	case route != nil:
		route(w, r)
	case path == "profile/":
		writeJSON(w, http.StatusOK, aliceUser())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"path": path})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func aliceUser() models.User {
	return models.User{
		ID:           1,
		Username:     "alice",
		Email:        "alice@general.org",
		Role:         models.RoleAdmin,
		HospitalName: "General Hospital",
	}
}

// newTestClient returns a client for api with a logged in session using
// accessToken and the refresh token "rtok".
func newTestClient(t *testing.T, api *fakeAPI, accessToken string) (*Client, *session.Store, *session.MemoryStorage) {
	t.Helper()

	storage := session.NewMemoryStorage()
	store, err := session.NewStore(storage)
	require.NoError(t, err)

	if accessToken != "" {
		user := aliceUser()
		require.NoError(t, store.SetAuth(&user, accessToken, "rtok"))
	}

	cfg := DefaultConfig()
	cfg.BaseURL = api.URL()
	cfg.Timeout = 5 * time.Second

	c, err := New(cfg, store)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return c, store, storage
}
