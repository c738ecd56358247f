package client

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/wardstock/internal/models"
)

const ordersPath = "orders/"

// ListOrders returns every purchase order.
func (c *Client) ListOrders(ctx context.Context) ([]models.PurchaseOrder, error) {
	return getList[models.PurchaseOrder](ctx, c, ordersPath)
}

// CreateOrder validates and submits a purchase order. A missing order
// number or date is generated.
func (c *Client) CreateOrder(ctx context.Context, in models.NewOrder) (*models.PurchaseOrder, error) {
	in.ApplyDefaults(time.Now())
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}

	var order models.PurchaseOrder
	if err := c.Post(ctx, ordersPath, in, &order); err != nil {
		return nil, err
	}

	log.Info().
		Str("orderNumber", order.OrderNumber).
		Int("items", len(in.Items)).
		Msg("purchase order created")

	return &order, nil
}
