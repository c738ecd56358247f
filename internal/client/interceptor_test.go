package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/wardstock/internal/session"
)

func TestClient_InjectsSessionToken(t *testing.T) {
	api := newFakeAPI(t)
	c, _, _ := newTestClient(t, api, "abc")

	var out map[string]string
	require.NoError(t, c.Get(context.Background(), "items/", &out))
	assert.Equal(t, "items/", out["path"])

	reqs := api.requestsTo("items/")
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"Bearer abc"}, reqs[0].Authorization)
	assert.NotEmpty(t, reqs[0].RequestID)
}

func TestClient_AuthRoutesAreNotAuthorized(t *testing.T) {
	api := newFakeAPI(t)
	c, _, _ := newTestClient(t, api, "abc")
	c.SetDefaultHeader("Authorization", "Bearer dflt")

	err := c.Post(context.Background(), "token/", Credentials{Username: "alice", Password: "secret"}, &TokenPair{})
	require.NoError(t, err)

	_, err = c.Register(context.Background(), RegisterRequest{Username: "bob", Email: "bob@general.org", Password: "pw"})
	require.NoError(t, err)

	for _, path := range []string{"token/", "register/"} {
		reqs := api.requestsTo(path)
		require.Len(t, reqs, 1, path)
		assert.Empty(t, reqs[0].Authorization, path)
	}
}

func TestClient_AuthRouteUnauthorizedSkipsRefresh(t *testing.T) {
	api := newFakeAPI(t)
	c, store, _ := newTestClient(t, api, "abc")

	err := c.Post(context.Background(), "token/", Credentials{Username: "alice", Password: "wrong"}, &TokenPair{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationExpired)

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "No active account found with the given credentials", respErr.Message())

	assert.Zero(t, api.refreshCount())
	assert.Len(t, api.requestsTo("token/"), 1)
	assert.True(t, store.Read().Authenticated())
}

func TestClient_UnauthenticatedRequestHasNoCredential(t *testing.T) {
	api := newFakeAPI(t)
	c, _, _ := newTestClient(t, api, "")

	err := c.Get(context.Background(), "items/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationExpired)

	reqs := api.requestsTo("items/")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Authorization)
	assert.Zero(t, api.refreshCount())
}

func TestClient_CallerSuppliedAuthorizationWins(t *testing.T) {
	api := newFakeAPI(t)
	api.setValidToken("custom")
	c, _, _ := newTestClient(t, api, "abc")

	req, err := NewRequest(http.MethodGet, "items/", nil)
	require.NoError(t, err)
	// Non-canonical key, as a caller writing the map directly would.
	req.Header["authorization"] = []string{"Bearer custom"}

	_, err = c.Do(context.Background(), req)
	require.NoError(t, err)

	reqs := api.requestsTo("items/")
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"Bearer custom"}, reqs[0].Authorization)
}

func TestClient_DefaultAuthorization(t *testing.T) {
	api := newFakeAPI(t)
	api.setValidToken("dflt")
	c, store, _ := newTestClient(t, api, "abc")
	c.SetDefaultHeader("Authorization", "Bearer dflt")

	require.NoError(t, c.Get(context.Background(), "items/", nil))

	reqs := api.requestsTo("items/")
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"Bearer dflt"}, reqs[0].Authorization)

	t.Run("cleared on logout", func(t *testing.T) {
		require.NoError(t, store.Logout())
		assert.Empty(t, c.DefaultHeader("Authorization"))
	})
}

func TestClient_RefreshAndReplay(t *testing.T) {
	api := newFakeAPI(t)
	c, store, storage := newTestClient(t, api, "expired")

	var out map[string]string
	require.NoError(t, c.Get(context.Background(), "items/", &out))
	assert.Equal(t, "items/", out["path"])

	assert.Equal(t, 1, api.refreshCount())
	assert.Equal(t, []string{"rtok"}, api.refreshTokensSeen())

	reqs := api.requestsTo("items/")
	require.Len(t, reqs, 2)
	assert.Equal(t, []string{"Bearer expired"}, reqs[0].Authorization)
	assert.Equal(t, []string{"Bearer new"}, reqs[1].Authorization)

	token, err := storage.Get(session.AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "new", token)
	assert.Equal(t, "new", store.AccessToken())
	assert.Equal(t, "Bearer new", c.DefaultHeader("Authorization"))

	snapshot := store.Read()
	require.NotNil(t, snapshot.User)
	assert.Equal(t, "alice", snapshot.User.Username)

	t.Run("later requests use the new token", func(t *testing.T) {
		require.NoError(t, c.Get(context.Background(), "suppliers/", nil))

		reqs := api.requestsTo("suppliers/")
		require.Len(t, reqs, 1)
		assert.Equal(t, []string{"Bearer new"}, reqs[0].Authorization)
		assert.Equal(t, 1, api.refreshCount())
	})
}

func TestClient_ReplayReplacesCallerAuthorization(t *testing.T) {
	api := newFakeAPI(t)
	c, _, _ := newTestClient(t, api, "expired")

	req, err := NewRequest(http.MethodGet, "items/", nil)
	require.NoError(t, err)
	req.Header["authorization"] = []string{"Bearer stale"}

	_, err = c.Do(context.Background(), req)
	require.NoError(t, err)

	reqs := api.requestsTo("items/")
	require.Len(t, reqs, 2)
	assert.Equal(t, []string{"Bearer stale"}, reqs[0].Authorization)
	assert.Equal(t, []string{"Bearer new"}, reqs[1].Authorization)
}

func TestClient_ReplayResendsBody(t *testing.T) {
	api := newFakeAPI(t)
	c, _, _ := newTestClient(t, api, "expired")

	in := map[string]any{"name": "Saline", "sku": "SAL-001", "quantity": 10}
	require.NoError(t, c.Post(context.Background(), "inventory/", in, nil))

	reqs := api.requestsTo("inventory/")
	require.Len(t, reqs, 2)
	assert.JSONEq(t, reqs[0].Body, reqs[1].Body)
	assert.Equal(t, http.MethodPost, reqs[1].Method)
	assert.NotEmpty(t, reqs[0].Body)
}

func TestClient_SecondUnauthorizedIsTerminal(t *testing.T) {
	api := newFakeAPI(t)
	api.configure(func(a *fakeAPI) { a.rejectAll = true })
	c, store, _ := newTestClient(t, api, "expired")

	err := c.Get(context.Background(), "items/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationExpired)
	assert.NotErrorIs(t, err, ErrAuthenticationInvalid)

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusUnauthorized, respErr.StatusCode)

	assert.Equal(t, 1, api.refreshCount())
	assert.Len(t, api.requestsTo("items/"), 2)

	// The refresh itself succeeded, so the session survives.
	assert.True(t, store.Read().Authenticated())
	assert.Equal(t, "new", store.AccessToken())
}

func TestClient_RefreshFailureClearsSession(t *testing.T) {
	api := newFakeAPI(t)
	api.configure(func(a *fakeAPI) { a.refreshStatus = http.StatusUnauthorized })
	c, store, storage := newTestClient(t, api, "expired")

	err := c.Get(context.Background(), "items/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationInvalid)
	assert.True(t, IsAuthError(err))

	var refreshErr *RefreshError
	require.ErrorAs(t, err, &refreshErr)

	// The original rejection is what the caller sees first.
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "items/", respErr.Path)
	assert.Equal(t, http.StatusUnauthorized, respErr.StatusCode)

	for _, key := range []string{session.AccessTokenKey, session.RefreshTokenKey, session.SnapshotKey} {
		_, err := storage.Get(key)
		assert.ErrorIs(t, err, session.ErrKeyNotFound, key)
	}
	assert.False(t, store.Read().Authenticated())
	assert.Nil(t, store.Read().User)
	assert.Len(t, api.requestsTo("items/"), 1)
}

func TestClient_NoRefreshTokenClearsSession(t *testing.T) {
	api := newFakeAPI(t)
	c, store, storage := newTestClient(t, api, "expired")
	require.NoError(t, storage.Remove(session.RefreshTokenKey))

	err := c.Get(context.Background(), "items/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationExpired)

	assert.Zero(t, api.refreshCount())
	assert.False(t, store.Read().Authenticated())
	_, err = storage.Get(session.AccessTokenKey)
	assert.ErrorIs(t, err, session.ErrKeyNotFound)
}

func TestClient_RotatedRefreshToken(t *testing.T) {
	api := newFakeAPI(t)
	api.configure(func(a *fakeAPI) { a.rotatedRefresh = "rtok2" })
	c, store, _ := newTestClient(t, api, "expired")

	require.NoError(t, c.Get(context.Background(), "items/", nil))

	refresh, err := store.RefreshToken()
	require.NoError(t, err)
	assert.Equal(t, "rtok2", refresh)
}

func TestClient_ConcurrentUnauthorizedRefreshOnce(t *testing.T) {
	api := newFakeAPI(t)
	api.configure(func(a *fakeAPI) { a.refreshDelay = 50 * time.Millisecond })
	c, _, _ := newTestClient(t, api, "expired")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Get(context.Background(), "items/", nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, api.refreshCount())

	for _, r := range api.requestsTo("items/") {
		require.Len(t, r.Authorization, 1)
		assert.Contains(t, []string{"Bearer expired", "Bearer new"}, r.Authorization[0])
	}
}

func TestClient_OtherFailuresDoNotRefresh(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("inventory/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"sku": {"inventory item with this sku already exists."},
		})
	})
	api.handle("orders/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})
	c, store, _ := newTestClient(t, api, "abc")

	err := c.Post(context.Background(), "inventory/", map[string]string{"sku": "SAL-001"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailure)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "sku: inventory item with this sku already exists.", respErr.Message())

	err = c.Get(context.Background(), "orders/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)

	assert.Zero(t, api.refreshCount())
	assert.True(t, store.Read().Authenticated())
}

func TestClient_NetworkFailure(t *testing.T) {
	api := newFakeAPI(t)
	c, store, _ := newTestClient(t, api, "abc")
	api.server.Close()

	err := c.Get(context.Background(), "items/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkFailure)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.MethodGet, netErr.Method)

	assert.True(t, store.Read().Authenticated())
}

func TestClient_ContextCanceled(t *testing.T) {
	api := newFakeAPI(t)
	c, _, _ := newTestClient(t, api, "abc")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Get(ctx, "items/", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestIsAuthRoute(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"token/", true},
		{"/token/", true},
		{"token/refresh/", true},
		{"register/", true},
		{"register/?next=x", true},
		{"items/", false},
		{"inventory/token/", false},
		{"tokens/", false},
		{"profile/", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isAuthRoute(tt.path))
		})
	}
}

func TestHeaderHelpers(t *testing.T) {
	h := http.Header{}
	h["authorization"] = []string{"Bearer a"}
	h.Set("Authorization", "Bearer b")

	assert.True(t, hasHeader(h, "AUTHORIZATION"))

	delHeader(h, "Authorization")
	assert.False(t, hasHeader(h, "Authorization"))
	assert.Empty(t, h)
}
