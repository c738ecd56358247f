package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/wardstock/internal/session"
	"golang.org/x/oauth2"
)

const authorizationHeader = "Authorization"

// prepare is the outbound hook. It builds the HTTP request and injects the
// bearer credential unless the route is an authentication route or the
// caller already supplied one.
func (c *Client) prepare(ctx context.Context, req *Request) (*http.Request, attempt, error) {
	var att attempt

	u, err := c.resolve(req.Path)
	if err != nil {
		return nil, att, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), bodyReader(req.Body))
	if err != nil {
		return nil, att, fmt.Errorf("failed to create request: %w", err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}

	authRoute := isAuthRoute(c.relativePath(u))

	c.mu.RLock()
	defaultAuth := c.defaultHeaders.Get(authorizationHeader)
	for key, values := range c.defaultHeaders {
		if strings.EqualFold(key, authorizationHeader) || hasHeader(httpReq.Header, key) {
			continue
		}
		httpReq.Header[key] = append([]string(nil), values...)
	}
	c.mu.RUnlock()

	if existing, ok := getHeader(httpReq.Header, authorizationHeader); ok {
		att.authorization = existing
	} else if !authRoute {
		switch {
		case defaultAuth != "":
			httpReq.Header.Set(authorizationHeader, defaultAuth)
		default:
			if token := c.session.AccessToken(); token != "" {
				(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
			}
		}
		att.authorization = httpReq.Header.Get(authorizationHeader)
		att.injected = att.authorization != ""
	}

	if len(req.Body) > 0 && !hasHeader(httpReq.Header, "Content-Type") {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !hasHeader(httpReq.Header, "Accept") {
		httpReq.Header.Set("Accept", "application/json")
	}
	if c.userAgent != "" && !hasHeader(httpReq.Header, "User-Agent") {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if !hasHeader(httpReq.Header, "X-Request-Id") {
		httpReq.Header.Set("X-Request-Id", newRequestID())
	}

	return httpReq, att, nil
}

// handleFailure is the inbound hook for failed requests. Only a 401 on a
// request that has not been replayed yet starts a refresh cycle; every
// other failure is returned unchanged.
func (c *Client) handleFailure(ctx context.Context, req *Request, att attempt, err error) (*Response, error) {
	var respErr *ResponseError
	if !errors.As(err, &respErr) || respErr.StatusCode != http.StatusUnauthorized {
		return nil, err
	}

	if req.retried || req.noRefresh {
		log.Debug().
			Str("path", req.Path).
			Bool("retried", req.retried).
			Msg("not refreshing session for rejected request")
		return nil, err
	}

	// Auth routes are exempt from refresh as well as from injection: a
	// rejected login or registration is a credential problem, not an expired
	// session, and refreshing would retry a bad password.
	if u, rerr := c.resolve(req.Path); rerr == nil && isAuthRoute(c.relativePath(u)) {
		return nil, err
	}

	replay := req.clone()
	replay.retried = true

	refreshToken, rerr := c.session.RefreshToken()
	if rerr != nil {
		if errors.Is(rerr, session.ErrNoRefreshToken) {
			c.clearSession(ctx, "no refresh token")
			return nil, err
		}
		return nil, errors.Join(err, rerr)
	}

	authorization, rerr := c.refreshAuthorization(ctx, att, refreshToken)
	if rerr != nil {
		c.clearSession(ctx, "refresh rejected")
		return nil, &RefreshError{Original: err, Err: rerr}
	}

	delHeader(replay.Header, authorizationHeader)
	replay.Header.Set(authorizationHeader, authorization)

	c.metrics.ReplaysTotal.Add(ctx, 1)
	log.Debug().Str("path", req.Path).Msg("replaying request with refreshed token")

	replayed, err := c.send(ctx, replay)
	if err != nil {
		return c.handleFailure(ctx, replay, replayed, err)
	}
	return replayed.response, nil
}

// refreshAuthorization returns a fresh authorization header value. When the
// failed request used a credential that has since been replaced, the
// current one is reused. Concurrent refreshes for the same refresh token
// share one call to the refresh endpoint.
func (c *Client) refreshAuthorization(ctx context.Context, att attempt, refreshToken string) (string, error) {
	if current, ok := c.replacedAuthorization(att); ok {
		c.metrics.RefreshCoalesced.Add(ctx, 1)
		return current, nil
	}

	v, err, shared := c.refreshGroup.Do(refreshToken, func() (any, error) {
		// Another refresh may have completed since the check above.
		if current, ok := c.replacedAuthorization(att); ok {
			return current, nil
		}

		access, err := c.refresh(context.WithoutCancel(ctx), refreshToken)
		if err != nil {
			return "", err
		}
		return "Bearer " + access, nil
	})
	if shared {
		c.metrics.RefreshCoalesced.Add(ctx, 1)
	}
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// replacedAuthorization returns the current credential when it differs from
// the one the client injected into the failed request.
func (c *Client) replacedAuthorization(att attempt) (string, bool) {
	if !att.injected {
		return "", false
	}
	current := c.currentAuthorization()
	if current == "" || current == att.authorization {
		return "", false
	}
	return current, true
}

// currentAuthorization is the header value the outbound hook would inject
// for a new request.
func (c *Client) currentAuthorization() string {
	if auth := c.DefaultHeader(authorizationHeader); auth != "" {
		return auth
	}
	if token := c.session.AccessToken(); token != "" {
		return "Bearer " + token
	}
	return ""
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// refresh exchanges the refresh token for a new access token, stores it and
// makes it the default credential. It bypasses both hooks.
func (c *Client) refresh(ctx context.Context, refreshToken string) (string, error) {
	c.metrics.RefreshAttemptsTotal.Add(ctx, 1)

	access, rotated, err := c.callRefresh(ctx, refreshToken)
	if err != nil {
		c.metrics.RefreshFailuresTotal.Add(ctx, 1)
		log.Warn().Err(err).Msg("session refresh failed")
		return "", err
	}

	if err := c.session.UpdateAccessToken(access); err != nil {
		return "", err
	}
	if rotated != "" {
		if err := c.session.RotateRefreshToken(rotated); err != nil {
			return "", err
		}
	}

	c.SetDefaultHeader(authorizationHeader, "Bearer "+access)

	log.Info().
		Str("tokenFingerprint", session.Fingerprint(access)).
		Bool("rotated", rotated != "").
		Msg("session refreshed")

	return access, nil
}

func (c *Client) callRefresh(ctx context.Context, refreshToken string) (string, string, error) {
	body, err := json.Marshal(refreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", "", fmt.Errorf("failed to encode refresh request: %w", err)
	}

	u, err := c.resolve(refreshPath)
	if err != nil {
		return "", "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bodyReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", newRequestID())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", "", &NetworkError{Method: http.MethodPost, URL: u.Redacted(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", &NetworkError{Method: http.MethodPost, URL: u.Redacted(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", newResponseError(http.MethodPost, refreshPath, resp.StatusCode, data)
	}

	var out refreshResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", "", fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if out.Access == "" {
		return "", "", errors.New("refresh response has no access token")
	}

	return out.Access, out.Refresh, nil
}

func (c *Client) clearSession(ctx context.Context, reason string) {
	c.metrics.SessionClearsTotal.Add(ctx, 1)
	log.Warn().Str("reason", reason).Msg("clearing session")

	if err := c.session.Logout(); err != nil {
		log.Error().Err(err).Msg("failed to clear session")
	}
}

// onSessionChange drops the default credential once it no longer matches
// the session, e.g. after logout or a new login.
func (c *Client) onSessionChange(s session.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.defaultHeaders.Get(authorizationHeader)
	if current == "" {
		return
	}
	if !s.Authenticated() || current != "Bearer "+s.AccessToken {
		c.defaultHeaders.Del(authorizationHeader)
	}
}

// isAuthRoute reports whether path (relative to the base URL) is a token
// or registration endpoint. These are callable without a session.
func isAuthRoute(path string) bool {
	path = strings.TrimLeft(path, "/")
	first, _, _ := strings.Cut(path, "/")
	first, _, _ = strings.Cut(first, "?")
	return first == "token" || first == "register"
}

func hasHeader(h http.Header, key string) bool {
	_, ok := getHeader(h, key)
	return ok
}

// getHeader looks key up ignoring case, since callers may have written the
// map directly without canonical keys.
func getHeader(h http.Header, key string) (string, bool) {
	for k, values := range h {
		if strings.EqualFold(k, key) && len(values) > 0 {
			return values[0], true
		}
	}
	return "", false
}

func delHeader(h http.Header, key string) {
	for k := range h {
		if strings.EqualFold(k, key) {
			delete(h, k)
		}
	}
}
