package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/wardstock/cmd/cli/internal/commands"
	"github.com/wolfeidau/wardstock/internal/config"
	"github.com/wolfeidau/wardstock/internal/logger"
	"github.com/wolfeidau/wardstock/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Login        commands.LoginCmd        `cmd:"" help:"Log in to the inventory API"`
		Logout       commands.LogoutCmd       `cmd:"" help:"Log out and remove stored tokens"`
		Register     commands.RegisterCmd     `cmd:"" help:"Register a new account"`
		Whoami       commands.WhoamiCmd       `cmd:"" help:"Show the current session"`
		Inventory    commands.InventoryCmd    `cmd:"" help:"Manage inventory items"`
		Suppliers    commands.SuppliersCmd    `cmd:"" help:"Show suppliers"`
		Transactions commands.TransactionsCmd `cmd:"" help:"Show stock transactions"`
		Orders       commands.OrdersCmd       `cmd:"" help:"Manage purchase orders"`
		Staff        commands.StaffCmd        `cmd:"" help:"Show hospital staff"`
		Alerts       commands.AlertsCmd       `cmd:"" help:"Show stock alerts"`

		Debug     bool          `help:"Enable debug mode."`
		APIURL    string        `name:"api-url" help:"Inventory API base URL" env:"WARDSTOCK_API_URL"`
		StateDir  string        `help:"Session state directory (default ~/.wardstock)" env:"WARDSTOCK_STATE_DIR"`
		Cache     bool          `help:"Cache cacheable API responses"`
		CacheDir  string        `help:"Persist the response cache in this directory"`
		Timeout   time.Duration `help:"Request timeout (default 30s)"`
		RateLimit float64       `help:"Maximum API requests per second, 0 for no limit" default:"0"`
		Config    string        `help:"Configuration file" env:"WARDSTOCK_CONFIG"`
		Telemetry bool          `help:"Export traces and metrics over OTLP"`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("wardstock"),
		kong.Description("Hospital inventory command line client."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	globals := &commands.Globals{
		Debug:     cli.Debug,
		Version:   version,
		APIURL:    cli.APIURL,
		StateDir:  cli.StateDir,
		CacheDir:  cli.CacheDir,
		Cache:     cli.Cache,
		Telemetry: cli.Telemetry,
		Timeout:   cli.Timeout,
		RateLimit: cli.RateLimit,
	}

	err := applyConfig(globals, cli.Config)
	cmd.FatalIfErrorf(err)

	if globals.Telemetry {
		shutdown, err := telemetry.InitTelemetry(ctx, "wardstock", version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	err = cmd.Run(globals)
	cmd.FatalIfErrorf(err)
}

// applyConfig fills settings not given as flags or environment variables
// from the configuration file. The default file is optional.
func applyConfig(globals *commands.Globals, path string) error {
	explicit := path != ""
	if !explicit {
		path = config.DefaultPath()
		if path == "" {
			return nil
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	log.Debug().Str("path", path).Msg("loaded configuration")

	globals.ApplyConfig(cfg)

	return nil
}
