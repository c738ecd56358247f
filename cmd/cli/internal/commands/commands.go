package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/wolfeidau/wardstock/internal/client"
	"github.com/wolfeidau/wardstock/internal/config"
	"github.com/wolfeidau/wardstock/internal/session"
)

type Globals struct {
	Debug     bool
	Version   string
	APIURL    string
	StateDir  string
	CacheDir  string
	Cache     bool
	Telemetry bool
	Timeout   time.Duration
	RateLimit float64

	// Out receives command output, defaults to stdout.
	Out io.Writer
}

// ApplyConfig fills settings that were not given on the command line or
// in the environment from the configuration file.
func (g *Globals) ApplyConfig(cfg *config.Config) {
	if g.APIURL == "" {
		g.APIURL = cfg.APIURL
	}
	if g.StateDir == "" {
		g.StateDir = cfg.StateDir
	}
	if g.CacheDir == "" {
		g.CacheDir = cfg.CacheDir
	}
	if g.Timeout == 0 {
		g.Timeout = cfg.Timeout
	}
	g.Cache = g.Cache || cfg.Cache
	g.Telemetry = g.Telemetry || cfg.Telemetry
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Globals) sessionStore() (*session.Store, error) {
	storage, err := session.NewFileStorage(g.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session storage: %w", err)
	}

	store, err := session.NewStore(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return store, nil
}

// newClient creates an API client bound to the persisted session.
func (g *Globals) newClient() (*client.Client, error) {
	store, err := g.sessionStore()
	if err != nil {
		return nil, err
	}

	cfg := client.DefaultConfig()
	if g.APIURL != "" {
		cfg.BaseURL = g.APIURL
	}
	if g.Timeout > 0 {
		cfg.Timeout = g.Timeout
	}
	cfg.UserAgent = "wardstock/" + g.Version
	cfg.Cache = g.Cache
	cfg.CacheDir = g.CacheDir
	cfg.Telemetry = g.Telemetry
	cfg.RateLimit = g.RateLimit

	c, err := client.New(cfg, store)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return c, nil
}

// ErrNotLoggedIn is returned by commands that need a session when there is
// none, or when the server ended it.
var ErrNotLoggedIn = errors.New("not logged in, run `wardstock login`")

// apiError adds a re-login hint to authentication failures and surfaces the
// server's message for validation failures.
func apiError(action string, err error) error {
	if client.IsAuthError(err) {
		return fmt.Errorf("%s: %w: %w", action, ErrNotLoggedIn, err)
	}

	var respErr *client.ResponseError
	if errors.As(err, &respErr) {
		if msg := respErr.Message(); msg != "" {
			return fmt.Errorf("%s: %s: %w", action, msg, err)
		}
	}

	return fmt.Errorf("%s: %w", action, err)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 3 {
		return string(runes[:max(n, 0)])
	}
	return string(runes[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
