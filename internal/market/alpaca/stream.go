package alpaca

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/market"
	"alpha_portfolios/internal/models"
)

// PriceCache serves latest prices from the Alpaca trade stream and falls
// back to a REST oracle for symbols it has not seen recently.
type PriceCache struct {
	fallback market.PriceOracle
	maxAge   time.Duration
	log      zerolog.Logger

	mu     sync.RWMutex
	prices map[string]cachedPrice
}

type cachedPrice struct {
	price decimal.Decimal
	at    time.Time
}

var _ market.PriceOracle = (*PriceCache)(nil)

// NewPriceCache returns a cache in front of fallback. Entries older than
// maxAge are ignored.
func NewPriceCache(fallback market.PriceOracle, maxAge time.Duration, log zerolog.Logger) *PriceCache {
	return &PriceCache{
		fallback: fallback,
		maxAge:   maxAge,
		log:      log.With().Str("component", "price_cache").Logger(),
		prices:   make(map[string]cachedPrice),
	}
}

// Update stores a trade print.
func (c *PriceCache) Update(symbol string, price float64, at time.Time) {
	if price <= 0 {
		return
	}
	c.mu.Lock()
	c.prices[strings.ToUpper(symbol)] = cachedPrice{price: decimal.NewFromFloat(price), at: at}
	c.mu.Unlock()
}

func (c *PriceCache) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if price, ok := c.lookup(symbol); ok {
		return price, nil
	}
	return c.fallback.LatestPrice(ctx, symbol)
}

func (c *PriceCache) lookup(symbol string) (decimal.Decimal, bool) {
	c.mu.RLock()
	cp, ok := c.prices[strings.ToUpper(symbol)]
	c.mu.RUnlock()
	if !ok || time.Since(cp.at) > c.maxAge {
		return decimal.Zero, false
	}
	return cp.price, true
}

// Through returns an oracle reading this cache with its own fallback, so
// one stream can serve every portfolio while misses still go to the
// portfolio's own account.
func (c *PriceCache) Through(fallback market.PriceOracle) market.PriceOracle {
	return market.PriceFunc(func(ctx context.Context, symbol string) (decimal.Decimal, error) {
		if price, ok := c.lookup(symbol); ok {
			return price, nil
		}
		return fallback.LatestPrice(ctx, symbol)
	})
}

// CachedFactory wraps base so every portfolio's oracle reads through cache.
func CachedFactory(base market.BrokerFactory, cache *PriceCache) market.BrokerFactory {
	return func(creds models.Credentials) (market.Broker, market.PriceOracle) {
		broker, prices := base(creds)
		return broker, cache.Through(prices)
	}
}

// Stream subscribes to trades for symbols and feeds the cache until ctx is
// done. Connection failures are retried with capped exponential backoff.
func (c *PriceCache) Stream(ctx context.Context, creds models.Credentials, symbols []string) error {
	backoff := time.Second
	const maxBackoff = 60 * time.Second
	for {
		// A stocks client can only be connected once.
		client := stream.NewStocksClient(
			marketdata.IEX,
			stream.WithCredentials(creds.APIKey, creds.SecretKey),
			stream.WithReconnectSettings(10, 500*time.Millisecond),
			stream.WithTrades(func(t stream.Trade) {
				c.Update(t.Symbol, t.Price, t.Timestamp)
			}, symbols...),
		)
		c.log.Info().Strs("symbols", symbols).Msg("connecting to Alpaca stream")
		err := client.Connect(ctx)
		if err == nil {
			err = <-client.Terminated()
		}
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Err(err).Dur("backoff", backoff).Msg("stream closed, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
