package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/wardstock/internal/models"
	"github.com/wolfeidau/wardstock/internal/session"
)

// API paths, relative to the base URL.
const (
	tokenPath    = "token/"
	refreshPath  = "token/refresh/"
	registerPath = "register/"
	profilePath  = "profile/"
	staffPath    = "staff-list/"
)

// ErrInvalidUsername is returned before contacting the server when the
// username contains whitespace.
var ErrInvalidUsername = errors.New("username must not contain spaces")

// Credentials is the body of a token request.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair is returned by the token endpoint.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RegisterRequest is the body of an account registration.
type RegisterRequest struct {
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	Password     string      `json:"password"`
	HospitalName string      `json:"hospital_name"`
	Role         models.Role `json:"role"`
}

// Validate checks the fields the server would otherwise reject.
func (r *RegisterRequest) Validate() error {
	if err := validateUsername(r.Username); err != nil {
		return err
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	if r.Role == "" {
		r.Role = models.RoleStaff
	}
	if !r.Role.Valid() {
		return fmt.Errorf("invalid role %q", r.Role)
	}
	return nil
}

func validateUsername(username string) error {
	if username == "" {
		return errors.New("username is required")
	}
	if strings.ContainsFunc(username, unicode.IsSpace) {
		return ErrInvalidUsername
	}
	return nil
}

// Login exchanges credentials for a token pair, loads the profile with the
// new access token and records the session.
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	var tokens TokenPair
	if err := c.Post(ctx, tokenPath, Credentials{Username: username, Password: password}, &tokens); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		return nil, errors.New("login failed: token response is incomplete")
	}

	// The profile is fetched with the new token explicitly, any stored
	// session still belongs to the previous user.
	req := &Request{Method: http.MethodGet, Path: profilePath, Header: make(http.Header), noRefresh: true}
	req.Header.Set(authorizationHeader, "Bearer "+tokens.Access)

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	var user models.User
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}

	if err := c.session.SetAuth(&user, tokens.Access, tokens.Refresh); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	log.Info().
		Str("username", user.Username).
		Str("role", string(user.Role)).
		Str("tokenFingerprint", session.Fingerprint(tokens.Access)).
		Msg("logged in")

	return user.Clone(), nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var user models.User
	if err := c.Post(ctx, registerPath, in, &user); err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	log.Info().Str("username", in.Username).Msg("registered account")

	return &user, nil
}

// Profile fetches the logged in user.
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.Get(ctx, profilePath, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout ends the session locally. The server keeps no session state.
func (c *Client) Logout() error {
	return c.session.Logout()
}

// ListStaff returns the users of the caller's hospital.
func (c *Client) ListStaff(ctx context.Context) ([]models.User, error) {
	return getList[models.User](ctx, c, staffPath)
}
