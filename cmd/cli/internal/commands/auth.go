package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/wardstock/internal/client"
	"github.com/wolfeidau/wardstock/internal/models"
	"github.com/wolfeidau/wardstock/internal/session"
)

// LoginCmd starts a session.
type LoginCmd struct {
	Username string `arg:"" help:"Username"`
	Password string `help:"Password" env:"WARDSTOCK_PASSWORD" required:""`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	user, err := c.Login(ctx, l.Username, l.Password)
	if err != nil {
		return apiError("login", err)
	}

	fmt.Fprintf(globals.out(), "Logged in as %s (%s) at %s\n", user.Username, user.Role, orDash(user.HospitalName))
	return nil
}

// LogoutCmd ends the session.
type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := globals.sessionStore()
	if err != nil {
		return err
	}

	if err := store.Logout(); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}

	fmt.Fprintln(globals.out(), "Logged out.")
	return nil
}

// RegisterCmd creates an account.
type RegisterCmd struct {
	Username string `arg:"" help:"Username"`
	Email    string `help:"Email address" required:""`
	Password string `help:"Password" env:"WARDSTOCK_PASSWORD" required:""`
	Hospital string `help:"Hospital name" required:""`
	Role     string `help:"Role (admin, inventory_manager, procurement, staff)" default:"staff" enum:"admin,inventory_manager,procurement,staff"`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	user, err := c.Register(ctx, client.RegisterRequest{
		Username:     r.Username,
		Email:        r.Email,
		Password:     r.Password,
		HospitalName: r.Hospital,
		Role:         models.Role(r.Role),
	})
	if err != nil {
		return apiError("register", err)
	}

	out := globals.out()
	fmt.Fprintf(out, "Registered %s.\n", user.Username)
	fmt.Fprintln(out, "Next: wardstock login", user.Username)
	return nil
}

// WhoamiCmd shows the current session.
type WhoamiCmd struct {
	Remote bool `help:"Fetch the profile from the server instead of the local session"`
}

func (w *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := globals.sessionStore()
	if err != nil {
		return err
	}

	snapshot := store.Read()
	if !snapshot.Authenticated() {
		return ErrNotLoggedIn
	}
	user := snapshot.User

	if w.Remote {
		c, err := globals.newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		user, err = c.Profile(ctx)
		if err != nil {
			return apiError("profile", err)
		}
		// The client may have refreshed the token.
		snapshot = c.Session().Read()
	}

	tw := tabwriter.NewWriter(globals.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Username:\t%s\n", user.Username)
	fmt.Fprintf(tw, "Email:\t%s\n", orDash(user.Email))
	fmt.Fprintf(tw, "Role:\t%s\n", user.Role)
	fmt.Fprintf(tw, "Hospital:\t%s\n", orDash(user.HospitalName))
	fmt.Fprintf(tw, "Token:\t%s\n", session.Fingerprint(snapshot.AccessToken))

	if expiry, err := session.TokenExpiry(snapshot.AccessToken); err == nil {
		state := "valid"
		if time.Now().After(expiry) {
			state = "expired, refreshed on next request"
		}
		fmt.Fprintf(tw, "Expires:\t%s (%s)\n", expiry.Local().Format(time.RFC3339), state)
	}

	return tw.Flush()
}
