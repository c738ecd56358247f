package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/wolfeidau/wardstock/internal/models"
	"gopkg.in/yaml.v3"
)

// OrdersCmd manages purchase orders.
type OrdersCmd struct {
	List    OrdersListCmd    `cmd:"" help:"List purchase orders"`
	Create  OrdersCreateCmd  `cmd:"" help:"Create a purchase order from a YAML file"`
	Summary OrdersSummaryCmd `cmd:"" help:"Show order counts by status"`
}

// OrdersListCmd lists purchase orders.
type OrdersListCmd struct {
	Search string `help:"Filter by order number or supplier" short:"s"`
	Status string `help:"Filter by status (pending, approved, ordered, delivered, cancelled)"`
}

func (o *OrdersListCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	orders, err := c.ListOrders(ctx)
	if err != nil {
		return apiError("failed to list orders", err)
	}

	orders = models.FilterOrders(orders, o.Search)
	if o.Status != "" {
		filtered := orders[:0]
		for _, order := range orders {
			if order.Status == o.Status {
				filtered = append(filtered, order)
			}
		}
		orders = filtered
	}

	out := globals.out()
	if len(orders) == 0 {
		fmt.Fprintln(out, "No orders found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tSUPPLIER\tSTATUS\tITEMS\tTOTAL\tORDERED\tEXPECTED")
	for _, order := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			order.OrderNumber,
			truncate(order.SupplierName, 25),
			order.Status,
			len(order.Items),
			order.TotalAmount,
			orDash(order.OrderDate),
			orDash(order.ExpectedDelivery))
	}
	return w.Flush()
}

// OrdersCreateCmd creates a purchase order described by a YAML file:
//
//	supplier: 1
//	expected_delivery: 2026-11-01
//	items:
//	  - inventory_item: 4
//	    quantity: 100
//	    unit_price: 2.5
type OrdersCreateCmd struct {
	File string `help:"Order file" short:"f" required:"" type:"existingfile"`
}

func (o *OrdersCreateCmd) Run(ctx context.Context, globals *Globals) error {
	data, err := os.ReadFile(o.File)
	if err != nil {
		return fmt.Errorf("failed to read order file: %w", err)
	}

	var order models.NewOrder
	if err := yaml.Unmarshal(data, &order); err != nil {
		return fmt.Errorf("failed to parse order file: %w", err)
	}

	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	created, err := c.CreateOrder(ctx, order)
	if err != nil {
		return apiError("failed to create order", err)
	}

	fmt.Fprintf(globals.out(), "Created order %s (%s), %d items, total %.2f\n",
		created.OrderNumber, created.Status, len(order.Items), order.Total())
	return nil
}

// OrdersSummaryCmd shows order counts.
type OrdersSummaryCmd struct{}

func (o *OrdersSummaryCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	orders, err := c.ListOrders(ctx)
	if err != nil {
		return apiError("failed to list orders", err)
	}

	summary := models.SummarizeOrders(orders)

	w := tabwriter.NewWriter(globals.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Active:\t%d\n", summary.Active)
	fmt.Fprintf(w, "Pending:\t%d\n", summary.Pending)
	fmt.Fprintf(w, "In transit:\t%d\n", summary.InTransit)
	fmt.Fprintf(w, "Delivered:\t%d\n", summary.Delivered)
	return w.Flush()
}
