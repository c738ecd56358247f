package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/wardstock/internal/client"
	"github.com/wolfeidau/wardstock/internal/models"
)

// AlertsCmd shows stock alerts derived from the inventory.
type AlertsCmd struct {
	List AlertsListCmd `cmd:"" help:"List low stock and expiry alerts"`
}

// AlertsListCmd lists alerts, optionally refreshing them periodically.
type AlertsListCmd struct {
	Filter   string        `help:"Alert type to show" enum:"all,critical,warning" default:"all"`
	Search   string        `help:"Filter by item name or SKU" short:"s"`
	Watch    bool          `help:"Refresh alerts periodically" default:"false"`
	Interval time.Duration `help:"Refresh interval when watching" default:"30s"`
}

func (a *AlertsListCmd) Run(ctx context.Context, globals *Globals) error {
	if a.Watch && a.Interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", a.Interval)
	}

	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	if a.Watch {
		return a.watchAlerts(ctx, c, globals.out())
	}

	items, err := c.ListItems(ctx)
	if err != nil {
		return apiError("failed to load inventory", err)
	}

	return a.printAlerts(globals.out(), items, time.Now())
}

func (a *AlertsListCmd) watchAlerts(ctx context.Context, c *client.Client, out io.Writer) error {
	fmt.Fprintln(out, "Watching alerts (press Ctrl+C to stop)...")
	fmt.Fprintln(out)

	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		items, err := a.fetchItems(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return apiError("failed to load inventory", err)
		}

		fmt.Fprintf(out, "Alerts (updated at %s)\n", time.Now().Format("15:04:05"))
		if err := a.printAlerts(out, items, time.Now()); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fmt.Fprint(out, "\033[2J\033[H") // Clear screen and move cursor to top
		}
	}
}

// fetchItems loads the inventory, retrying transient failures. An
// authentication failure stops immediately since the session is gone.
func (a *AlertsListCmd) fetchItems(ctx context.Context, c *client.Client) ([]models.InventoryItem, error) {
	operation := func() ([]models.InventoryItem, error) {
		items, err := c.ListItems(ctx)
		if err != nil {
			if client.IsAuthError(err) || ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return items, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = a.Interval

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(5*a.Interval),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retryIn", next).Msg("failed to refresh alerts")
		}),
	)
}

func (a *AlertsListCmd) printAlerts(out io.Writer, items []models.InventoryItem, now time.Time) error {
	alerts := models.FilterAlerts(models.DeriveAlerts(items, now), a.Filter, a.Search)

	if len(alerts) == 0 {
		fmt.Fprintln(out, "No alerts.")
		return nil
	}

	var critical int
	for _, alert := range alerts {
		if alert.Type == models.AlertCritical {
			critical++
		}
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tSKU\tTITLE\tMESSAGE")
	for _, alert := range alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", alert.Type, orDash(alert.SKU), alert.Title, alert.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d alerts, %d critical\n", len(alerts), critical)
	return nil
}
