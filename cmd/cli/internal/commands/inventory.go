package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/wardstock/internal/models"
)

// InventoryCmd manages inventory items.
type InventoryCmd struct {
	List     InventoryListCmd     `cmd:"" help:"List inventory items"`
	Add      InventoryAddCmd      `cmd:"" help:"Add an inventory item"`
	LowStock InventoryLowStockCmd `cmd:"" name:"low-stock" help:"List items below their minimum stock"`
	Adjust   InventoryAdjustCmd   `cmd:"" help:"Adjust the stock of an item"`
}

// InventoryListCmd lists inventory items.
type InventoryListCmd struct {
	Search   string `help:"Filter by name or SKU" short:"s"`
	Category string `help:"Filter by category (medicine, equipment, consumable)"`
}

func (i *InventoryListCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	items, err := c.ListItems(ctx)
	if err != nil {
		return apiError("failed to list inventory", err)
	}

	items = models.FilterItems(items, i.Search)
	if i.Category != "" {
		filtered := items[:0]
		for _, item := range items {
			if item.Category == i.Category {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	return printItems(globals.out(), items, time.Now())
}

// InventoryLowStockCmd lists items below their minimum stock.
type InventoryLowStockCmd struct{}

func (i *InventoryLowStockCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	items, err := c.LowStock(ctx)
	if err != nil {
		return apiError("failed to list low stock", err)
	}

	return printItems(globals.out(), items, time.Now())
}

// InventoryAddCmd adds an inventory item.
type InventoryAddCmd struct {
	Name         string `arg:"" help:"Item name"`
	SKU          string `help:"Stock keeping unit" required:""`
	Category     string `help:"Category" enum:"medicine,equipment,consumable" default:"medicine"`
	Quantity     int    `help:"Initial quantity" default:"0"`
	Unit         string `help:"Unit of measure" default:"units"`
	MinimumStock int    `help:"Minimum stock level" default:"10"`
	ExpiryDate   string `help:"Expiry date (YYYY-MM-DD)"`
	Location     string `help:"Storage location"`
}

func (i *InventoryAddCmd) Run(ctx context.Context, globals *Globals) error {
	if i.ExpiryDate != "" {
		if _, err := time.Parse(models.DateLayout, i.ExpiryDate); err != nil {
			return fmt.Errorf("invalid expiry date %q, expected YYYY-MM-DD", i.ExpiryDate)
		}
	}

	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	item, err := c.CreateItem(ctx, models.NewInventoryItem{
		Name:         i.Name,
		SKU:          i.SKU,
		Category:     i.Category,
		Quantity:     i.Quantity,
		Unit:         i.Unit,
		MinimumStock: i.MinimumStock,
		ExpiryDate:   i.ExpiryDate,
		Location:     i.Location,
	})
	if err != nil {
		return apiError("failed to add item", err)
	}

	fmt.Fprintf(globals.out(), "Added %s (id %d, sku %s)\n", item.Name, item.ID, item.SKU)
	return nil
}

// InventoryAdjustCmd records a stock movement.
type InventoryAdjustCmd struct {
	ID     int64  `arg:"" help:"Item id"`
	Change int    `help:"Quantity change, e.g. --change=-5 to consume" required:""`
	Type   string `help:"Transaction type" enum:"restock,consume,adjust,transfer,expired" default:"adjust"`
	Notes  string `help:"Notes for the transaction log"`
}

func (i *InventoryAdjustCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	item, err := c.AdjustStock(ctx, i.ID, models.StockAdjustment{
		QuantityChange:  i.Change,
		TransactionType: i.Type,
		Notes:           i.Notes,
	})
	if err != nil {
		return apiError("failed to adjust stock", err)
	}

	fmt.Fprintf(globals.out(), "%s: quantity now %d %s\n", item.Name, item.Quantity, item.Unit)
	return nil
}

func printItems(out io.Writer, items []models.InventoryItem, now time.Time) error {
	if len(items) == 0 {
		fmt.Fprintln(out, "No items found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSKU\tNAME\tCATEGORY\tQTY\tMIN\tEXPIRY\tSTATUS")

	for _, item := range items {
		status := item.EffectiveExpiryStatus(now)
		if item.IsLowStock() {
			status = "low_stock"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d %s\t%d\t%s\t%s\n",
			item.ID,
			item.SKU,
			truncate(item.Name, 30),
			item.Category,
			item.Quantity,
			item.Unit,
			item.MinimumStock,
			orDash(item.ExpiryDate),
			status)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTotal items: %d\n", len(items))
	return nil
}

// SuppliersCmd shows suppliers.
type SuppliersCmd struct {
	List SuppliersListCmd `cmd:"" help:"List suppliers"`
}

// SuppliersListCmd lists suppliers.
type SuppliersListCmd struct{}

func (s *SuppliersListCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	suppliers, err := c.ListSuppliers(ctx)
	if err != nil {
		return apiError("failed to list suppliers", err)
	}

	out := globals.out()
	if len(suppliers) == 0 {
		fmt.Fprintln(out, "No suppliers found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCONTACT\tEMAIL\tPHONE\tRATING")
	for _, s := range suppliers {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
			s.ID, s.Name, orDash(s.ContactPerson), orDash(s.Email), orDash(s.Phone), s.Rating)
	}
	return w.Flush()
}

// TransactionsCmd shows the stock transaction log.
type TransactionsCmd struct {
	List TransactionsListCmd `cmd:"" help:"List stock transactions"`
}

// TransactionsListCmd lists stock transactions.
type TransactionsListCmd struct {
	Limit int `help:"Show at most this many transactions, 0 for all" default:"50"`
}

func (t *TransactionsListCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	txs, err := c.ListTransactions(ctx)
	if err != nil {
		return apiError("failed to list transactions", err)
	}
	if t.Limit > 0 && len(txs) > t.Limit {
		txs = txs[:t.Limit]
	}

	out := globals.out()
	if len(txs) == 0 {
		fmt.Fprintln(out, "No transactions found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tITEM\tTYPE\tCHANGE\tBEFORE\tAFTER\tBY\tAT")
	for _, tx := range txs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%+d\t%d\t%d\t%s\t%s\n",
			tx.ID,
			truncate(tx.ItemName, 30),
			tx.TransactionType,
			tx.QuantityChange,
			tx.PreviousQuantity,
			tx.NewQuantity,
			orDash(tx.PerformedByName),
			tx.PerformedAt)
	}
	return w.Flush()
}
