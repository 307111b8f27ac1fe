// Package research gathers the per-symbol context handed to the decision
// service: fundamentals, news, headline sentiment and technical indicators.
package research

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"alpha_portfolios/internal/models"
)

// Fetcher is the research contract consumed by the orchestration loop.
// Fetch never fails; every sub-fetch degrades independently.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) models.Research
}

// FundamentalsSource returns company fundamentals for a symbol.
type FundamentalsSource interface {
	Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error)
}

// NewsSource returns recent headlines for a symbol.
type NewsSource interface {
	Name() string
	News(ctx context.Context, symbol string) ([]models.NewsItem, error)
}

// HistorySource returns daily closes between start and end, oldest first.
type HistorySource interface {
	DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error)
}

// TrendingSource returns currently trending ticker symbols.
type TrendingSource interface {
	Trending(ctx context.Context, limit int) ([]string, error)
}

const technicalsLookback = 90 * 24 * time.Hour

// Service is the default Fetcher.
type Service struct {
	fundamentals FundamentalsSource
	news         []NewsSource
	history      HistorySource
	timeout      time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

var _ Fetcher = (*Service)(nil)

// Options wires the sources of a Service. Nil sources are skipped. News
// sources are tried in order until one returns headlines.
type Options struct {
	Fundamentals FundamentalsSource
	News         []NewsSource
	History      HistorySource
	Timeout      time.Duration
	Logger       zerolog.Logger
}

func NewService(opts Options) *Service {
	return &Service{
		fundamentals: opts.Fundamentals,
		news:         opts.News,
		history:      opts.History,
		timeout:      opts.Timeout,
		log:          opts.Logger.With().Str("component", "research").Logger(),
		now:          time.Now,
	}
}

func (s *Service) Fetch(ctx context.Context, symbol string) models.Research {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	r := models.Research{Symbol: symbol, FetchedAt: s.now(), News: []models.NewsItem{}}

	if s.fundamentals != nil {
		f, err := withTimeout(ctx, s.timeout, func(ctx context.Context) (models.Fundamentals, error) {
			return s.fundamentals.Fundamentals(ctx, symbol)
		})
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("fundamentals unavailable")
			f = models.Fundamentals{Error: err.Error()}
		}
		r.Fundamentals = f
	}

	r.News = s.fetchNews(ctx, symbol)
	r.Sentiment = Sentiment(r.News)

	if s.history != nil {
		end := s.now()
		closes, err := withTimeout(ctx, s.timeout, func(ctx context.Context) ([]models.PricePoint, error) {
			return s.history.DailyCloses(ctx, symbol, end.Add(-technicalsLookback), end)
		})
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("price history unavailable")
		}
		r.Technicals = ComputeTechnicals(closes)
	}
	return r
}

func (s *Service) fetchNews(ctx context.Context, symbol string) []models.NewsItem {
	for _, src := range s.news {
		items, err := withTimeout(ctx, s.timeout, func(ctx context.Context) ([]models.NewsItem, error) {
			return src.News(ctx, symbol)
		})
		if err != nil {
			s.log.Debug().Err(err).Str("source", src.Name()).Str("symbol", symbol).Msg("news source failed")
			continue
		}
		if len(items) > 0 {
			return items
		}
	}
	return []models.NewsItem{}
}

// withTimeout bounds fn by d. A zero duration only inherits ctx.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return fn(ctx)
}
