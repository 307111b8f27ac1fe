package market

import (
	"context"

	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/models"
)

// Broker is the per-account brokerage contract the core needs.
//
// GetAccount fails soft (callers treat an error as "unknown"); SubmitOrder
// fails hard and the caller must log and drop the order.
type Broker interface {
	GetAccount(ctx context.Context) (*models.Account, error)
	SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.BrokerOrder, error)
	ListOrders(ctx context.Context, status string) ([]models.BrokerOrder, error)
	// CloseAllPositions liquidates every position and cancels open orders.
	CloseAllPositions(ctx context.Context) error
}

// PriceOracle returns the latest tradable price for a symbol.
// An error or a non-positive price means "unavailable".
type PriceOracle interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// BrokerFactory builds the broker and price oracle for one set of credentials.
type BrokerFactory func(creds models.Credentials) (Broker, PriceOracle)

// PriceFunc adapts a function to PriceOracle.
type PriceFunc func(ctx context.Context, symbol string) (decimal.Decimal, error)

func (f PriceFunc) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f(ctx, symbol)
}
