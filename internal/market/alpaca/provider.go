package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/market"
	"alpha_portfolios/internal/models"
)

// Provider implements market.Broker and market.PriceOracle for one Alpaca account.
type Provider struct {
	mdClient    *marketdata.Client
	tradeClient *alpaca.Client
}

// Ensure Provider implements the interfaces
var (
	_ market.Broker      = (*Provider)(nil)
	_ market.PriceOracle = (*Provider)(nil)
)

// NewProvider returns a provider bound to the given credentials. Every HTTP
// call is bounded by timeout.
func NewProvider(creds models.Credentials, timeout time.Duration) *Provider {
	httpClient := &http.Client{Timeout: timeout}
	return &Provider{
		mdClient: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:     creds.APIKey,
			APISecret:  creds.SecretKey,
			HTTPClient: httpClient,
		}),
		tradeClient: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:     creds.APIKey,
			APISecret:  creds.SecretKey,
			BaseURL:    creds.BaseURL,
			HTTPClient: httpClient,
		}),
	}
}

// Factory returns a market.BrokerFactory producing Alpaca providers.
func Factory(timeout time.Duration) market.BrokerFactory {
	return func(creds models.Credentials) (market.Broker, market.PriceOracle) {
		p := NewProvider(creds, timeout)
		return p, p
	}
}

// --- Market Data ---

func (p *Provider) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	trade, err := p.mdClient.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: marketdata.IEX})
	if err != nil {
		return decimal.Zero, err
	}
	if trade == nil || trade.Price <= 0 {
		return decimal.Zero, fmt.Errorf("no trade found for %s", symbol)
	}
	return decimal.NewFromFloat(trade.Price), nil
}

// --- Account ---

func (p *Provider) GetAccount(ctx context.Context) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := p.tradeClient.GetAccount()
	if err != nil {
		return nil, err
	}
	return &models.Account{
		ID:             a.ID,
		Status:         string(a.Status),
		Currency:       a.Currency,
		Cash:           a.Cash,
		PortfolioValue: a.PortfolioValue,
		Equity:         a.Equity,
		BuyingPower:    a.BuyingPower,
	}, nil
}

// --- Execution ---

func (p *Provider) SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.BrokerOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qty := req.Qty
	o, err := p.tradeClient.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          alpaca.Side(req.Side),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		return nil, err
	}
	return mapOrder(o), nil
}

func (p *Provider) ListOrders(ctx context.Context, status string) ([]models.BrokerOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	orders, err := p.tradeClient.GetOrders(alpaca.GetOrdersRequest{
		Status: status,
		Limit:  100,
	})
	if err != nil {
		return nil, err
	}

	result := make([]models.BrokerOrder, 0, len(orders))
	for i := range orders {
		result = append(result, *mapOrder(&orders[i]))
	}
	return result, nil
}

func (p *Provider) CloseAllPositions(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.tradeClient.CloseAllPositions(alpaca.CloseAllPositionsRequest{CancelOrders: true})
	return err
}

// Helpers

func mapOrder(o *alpaca.Order) *models.BrokerOrder {
	if o == nil {
		return nil
	}

	res := &models.BrokerOrder{
		ID:            o.ID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		FilledQty:     o.FilledQty,
		Side:          models.Side(strings.ToLower(string(o.Side))),
		Type:          string(o.Type),
		Status:        o.Status,
		SubmittedAt:   o.SubmittedAt,
		FilledAt:      o.FilledAt,
	}
	if o.Qty != nil {
		res.Qty = *o.Qty
	}
	if o.FilledAvgPrice != nil {
		res.FilledAvgPrice = *o.FilledAvgPrice
	}
	return res
}
