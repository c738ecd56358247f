package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/wardstock/internal/models"
	"golang.org/x/oauth2"
)

// Storage keys.
const (
	AccessTokenKey  = "token"
	RefreshTokenKey = "refreshToken"
	SnapshotKey     = "auth-storage"
)

// snapshotVersion is written alongside the persisted snapshot.
const snapshotVersion = 0

var (
	// ErrInvalidSession is returned when SetAuth is given an incomplete session.
	ErrInvalidSession = errors.New("invalid session")

	// ErrNoRefreshToken is returned when no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token")
)

// Snapshot is the reactive part of the session. User is non-nil exactly
// when AccessToken is non-empty.
type Snapshot struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"token"`
}

// Authenticated reports whether the snapshot holds a logged in user.
func (s Snapshot) Authenticated() bool {
	return s.User != nil && s.AccessToken != ""
}

type persistedSnapshot struct {
	State   Snapshot `json:"state"`
	Version int      `json:"version"`
}

// Store is the single source of truth for authentication state. It is
// safe for concurrent use.
type Store struct {
	storage Storage

	mu       sync.RWMutex
	snapshot Snapshot

	listenersMu sync.Mutex
	listeners   map[int]func(Snapshot)
	nextID      int
}

// NewStore creates a session store and rehydrates it from storage. A missing
// or unreadable snapshot leaves the store unauthenticated.
func NewStore(storage Storage) (*Store, error) {
	s := &Store{
		storage:   storage,
		listeners: make(map[int]func(Snapshot)),
	}

	snapshot, err := s.rehydrate()
	if err != nil {
		return nil, err
	}
	s.snapshot = snapshot

	log.Debug().
		Bool("authenticated", snapshot.Authenticated()).
		Msg("session store initialized")

	return s, nil
}

func (s *Store) rehydrate() (Snapshot, error) {
	raw, err := s.storage.Get(SnapshotKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("failed to read session: %w", err)
	}

	var persisted persistedSnapshot
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable session snapshot")
		return Snapshot{}, nil
	}

	snapshot := persisted.State
	if !snapshot.Authenticated() {
		return Snapshot{}, nil
	}

	// A silent refresh may have replaced the access token since the snapshot
	// was written.
	if token, err := s.storage.Get(AccessTokenKey); err == nil && token != "" {
		snapshot.AccessToken = token
	}

	return snapshot, nil
}

// SetAuth records a successful login.
func (s *Store) SetAuth(user *models.User, accessToken, refreshToken string) error {
	if user == nil || accessToken == "" || refreshToken == "" {
		return ErrInvalidSession
	}

	snapshot := Snapshot{User: user.Clone(), AccessToken: accessToken}

	s.mu.Lock()
	err := s.persist(map[string]string{
		AccessTokenKey:  accessToken,
		RefreshTokenKey: refreshToken,
	}, snapshot)
	if err == nil {
		s.snapshot = snapshot
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}

	log.Info().
		Str("username", user.Username).
		Str("tokenFingerprint", Fingerprint(accessToken)).
		Msg("session started")

	s.notify(snapshot)
	return nil
}

// Logout removes both tokens and the snapshot from storage and clears the
// in-memory session. Calling it when already logged out is harmless.
func (s *Store) Logout() error {
	s.mu.Lock()
	var errs []error
	for _, key := range []string{AccessTokenKey, RefreshTokenKey, SnapshotKey} {
		if err := s.storage.Remove(key); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", key, err))
		}
	}
	wasAuthenticated := s.snapshot.Authenticated()
	s.snapshot = Snapshot{}
	s.mu.Unlock()

	if wasAuthenticated {
		log.Info().Msg("session cleared")
	}

	s.notify(Snapshot{})

	return errors.Join(errs...)
}

// Read returns a copy of the current session.
func (s *Store) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{User: s.snapshot.User.Clone(), AccessToken: s.snapshot.AccessToken}
}

// AccessToken returns the current access token, which may be empty.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot.AccessToken
}

// RefreshToken reads the refresh token from durable storage.
func (s *Store) RefreshToken() (string, error) {
	token, err := s.storage.Get(RefreshTokenKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return "", ErrNoRefreshToken
		}
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	if token == "" {
		return "", ErrNoRefreshToken
	}
	return token, nil
}

// UpdateAccessToken stores a token obtained by a silent refresh. The user
// is left untouched; without a logged in user only the token key is written.
func (s *Store) UpdateAccessToken(accessToken string) error {
	if accessToken == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	var (
		err      error
		snapshot Snapshot
		changed  bool
	)
	if s.snapshot.User != nil {
		snapshot = Snapshot{User: s.snapshot.User, AccessToken: accessToken}
		err = s.persist(map[string]string{AccessTokenKey: accessToken}, snapshot)
		if err == nil {
			s.snapshot = snapshot
			changed = true
		}
	} else {
		err = s.storage.Set(AccessTokenKey, accessToken)
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}

	log.Debug().
		Str("tokenFingerprint", Fingerprint(accessToken)).
		Msg("access token updated")

	if changed {
		s.notify(Snapshot{User: snapshot.User.Clone(), AccessToken: accessToken})
	}
	return nil
}

// RotateRefreshToken replaces the stored refresh token when the server
// issues a new one on refresh.
func (s *Store) RotateRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Set(RefreshTokenKey, refreshToken); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Token returns the session credentials as an oauth2 token, or nil when
// unauthenticated. Expiry is read from the access token when it is a JWT.
func (s *Store) Token() *oauth2.Token {
	snapshot := s.Read()
	if !snapshot.Authenticated() {
		return nil
	}

	token := &oauth2.Token{
		AccessToken: snapshot.AccessToken,
		TokenType:   "Bearer",
	}

	if refresh, err := s.RefreshToken(); err == nil {
		token.RefreshToken = refresh
	}

	if expiry, err := TokenExpiry(snapshot.AccessToken); err == nil {
		token.Expiry = expiry
	}

	return token
}

// Subscribe registers fn to be called after every change to the session.
// The returned func removes the listener.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(snapshot Snapshot) {
	s.listenersMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(Snapshot{User: snapshot.User.Clone(), AccessToken: snapshot.AccessToken})
	}
}

// persist writes the given token keys and the snapshot in one storage
// write, so a failure leaves the previous session intact. Caller holds s.mu.
func (s *Store) persist(tokens map[string]string, snapshot Snapshot) error {
	data, err := json.Marshal(persistedSnapshot{State: snapshot, Version: snapshotVersion})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	entries := make(map[string]string, len(tokens)+1)
	for key, value := range tokens {
		entries[key] = value
	}
	entries[SnapshotKey] = string(data)

	if err := s.storage.SetMany(entries); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}
