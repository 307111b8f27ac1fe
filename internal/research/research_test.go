package research

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpha_portfolios/internal/models"
)

type stubFundamentals struct {
	f   models.Fundamentals
	err error
}

func (s stubFundamentals) Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	return s.f, s.err
}

type stubNews struct {
	name  string
	items []models.NewsItem
	err   error
	calls int
}

func (s *stubNews) Name() string { return s.name }

func (s *stubNews) News(ctx context.Context, symbol string) ([]models.NewsItem, error) {
	s.calls++
	return s.items, s.err
}

type stubHistory struct {
	points []models.PricePoint
	err    error
}

func (s stubHistory) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	return s.points, s.err
}

type slowHistory struct{}

func (slowHistory) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func rising(n int) []models.PricePoint {
	pts := make([]models.PricePoint, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range pts {
		pts[i] = models.PricePoint{Time: start.AddDate(0, 0, i), Close: float64(i + 1)}
	}
	return pts
}

func TestService_FetchCombinesSources(t *testing.T) {
	finnhub := &stubNews{name: "finnhub", err: errors.New("rate limited")}
	newsapi := &stubNews{name: "newsapi", items: []models.NewsItem{{Headline: "Shares surge after record profit"}}}
	svc := NewService(Options{
		Fundamentals: stubFundamentals{f: models.Fundamentals{Name: "Apple", Price: 190}},
		News:         []NewsSource{finnhub, newsapi},
		History:      stubHistory{points: rising(60)},
		Logger:       zerolog.Nop(),
	})

	r := svc.Fetch(context.Background(), " aapl ")

	assert.Equal(t, "AAPL", r.Symbol)
	assert.Equal(t, "Apple", r.Fundamentals.Name)
	require.Len(t, r.News, 1)
	assert.Equal(t, 1, finnhub.calls)
	assert.Greater(t, r.Sentiment, 0.0)
	assert.True(t, r.Technicals.Available)
}

func TestService_FetchDegradesIndependently(t *testing.T) {
	svc := NewService(Options{
		Fundamentals: stubFundamentals{err: errors.New("yahoo down")},
		News:         []NewsSource{&stubNews{name: "finnhub", err: errors.New("boom")}},
		History:      stubHistory{err: errors.New("no history")},
		Logger:       zerolog.Nop(),
	})

	r := svc.Fetch(context.Background(), "MSFT")

	assert.Equal(t, "yahoo down", r.Fundamentals.Error)
	assert.NotNil(t, r.News)
	assert.Empty(t, r.News)
	assert.Zero(t, r.Sentiment)
	assert.False(t, r.Technicals.Available)
}

func TestService_FetchHonoursTimeout(t *testing.T) {
	svc := NewService(Options{
		History: slowHistory{},
		Timeout: 20 * time.Millisecond,
		Logger:  zerolog.Nop(),
	})

	done := make(chan models.Research, 1)
	go func() { done <- svc.Fetch(context.Background(), "SPY") }()

	select {
	case r := <-done:
		assert.False(t, r.Technicals.Available)
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not respect the timeout")
	}
}

func TestSentiment(t *testing.T) {
	assert.Zero(t, Sentiment(nil))
	assert.Zero(t, Sentiment([]models.NewsItem{{Headline: "Company holds annual meeting"}}))
	assert.Greater(t, Sentiment([]models.NewsItem{{Headline: "Stock soars on strong growth"}}), 0.0)
	assert.Less(t, Sentiment([]models.NewsItem{{Headline: "Shares plunge after earnings miss"}}), 0.0)
	assert.Less(t, polarity("results not strong"), 0.0)

	mixed := Sentiment([]models.NewsItem{{Headline: "surge"}, {Headline: "crash"}})
	assert.InDelta(t, -0.05, mixed, 1e-9)
}

func TestComputeTechnicals(t *testing.T) {
	assert.False(t, ComputeTechnicals(rising(49)).Available)

	tech := ComputeTechnicals(rising(60))
	require.True(t, tech.Available)
	assert.InDelta(t, 50.5, tech.SMA20, 1e-9)
	assert.InDelta(t, 35.5, tech.SMA50, 1e-9)
	assert.InDelta(t, 100, tech.RSI14, 1e-6)
	assert.Equal(t, 60.0, tech.LastClose)
}

func TestFinnhubNews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company-news", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2024-03-03", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-03-10", r.URL.Query().Get("to"))
		assert.Equal(t, "k", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"datetime":1710000000,"headline":"Apple rallies","source":"Reuters","summary":"s","url":"u"}]`)
	}))
	defer srv.Close()

	f := NewFinnhubNews(srv.URL, "k")
	f.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

	items, err := f.News(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Apple rallies", items[0].Headline)
	assert.Equal(t, "Reuters", items[0].Source)
	assert.Equal(t, int64(1710000000), items[0].PublishedAt.Unix())

	_, err = NewFinnhubNews(srv.URL, "").News(context.Background(), "AAPL")
	assert.Error(t, err)
}

func TestNewsAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","articles":[{"title":"Tesla recall widens","description":"d","url":"u","publishedAt":"2024-03-10T08:00:00Z","source":{"name":"AP"}}]}`)
	}))
	defer srv.Close()

	items, err := NewNewsAPI(srv.URL, "good").News(context.Background(), "TSLA")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Tesla recall widens", items[0].Headline)
	assert.Equal(t, "AP", items[0].Source)

	_, err = NewNewsAPI(srv.URL, "bad").News(context.Background(), "TSLA")
	assert.Error(t, err)
}

func TestYahooTrending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/finance/trending/US", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"finance":{"result":[{"quotes":[{"symbol":"nvda"},{"symbol":"AAPL"},{"symbol":"NVDA"},{"symbol":"TSLA"}]}]}}`)
	}))
	defer srv.Close()

	syms, err := NewYahooTrending(srv.URL).Trending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "AAPL"}, syms)

	syms, err = NewYahooTrending(srv.URL).Trending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "AAPL", "TSLA"}, syms)
}

func TestStooq(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/q/l/":
			if r.URL.Query().Get("s") == "^spx" {
				fmt.Fprint(w, "Symbol,Date,Time,Open,High,Low,Close,Volume\r\n^SPX,2024-03-08,22:00:09,5130.1,5189.2,5117.5,5123.69,0\r\n")
				return
			}
			fmt.Fprint(w, "Symbol,Date,Time,Open,High,Low,Close,Volume\r\nXYZ,N/D,N/D,N/D,N/D,N/D,N/D,N/D\r\n")
		case "/q/d/l/":
			fmt.Fprint(w, "Date,Open,High,Low,Close,Volume\n2024-03-01,1,1,1,10,0\n2024-03-04,1,1,1,11,0\n2024-03-05,1,1,1,bad,0\n2024-03-06,1,1,1,12,0\n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	s := NewStooq(srv.URL)
	ctx := context.Background()

	pt, err := s.Latest(ctx, "^SPX")
	require.NoError(t, err)
	assert.Equal(t, "5123.69", pt.Value.String())
	assert.Equal(t, time.Date(2024, 3, 8, 22, 0, 9, 0, time.UTC), pt.Time)

	_, err = s.Latest(ctx, "XYZ")
	assert.Error(t, err)

	pts, err := s.DailyCloses(ctx, "AAPL",
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, 11.0, pts[0].Close)
	assert.Equal(t, 12.0, pts[1].Close)
}

func TestFallbackHistory(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	pts, err := FallbackHistory{stubHistory{err: errors.New("down")}, stubHistory{points: rising(3)}}.
		DailyCloses(ctx, "AAPL", now, now)
	require.NoError(t, err)
	assert.Len(t, pts, 3)

	_, err = FallbackHistory{stubHistory{err: errors.New("down")}, stubHistory{}}.DailyCloses(ctx, "AAPL", now, now)
	assert.Error(t, err)

	pts, err = FallbackHistory{stubHistory{}}.DailyCloses(ctx, "AAPL", now, now)
	assert.NoError(t, err)
	assert.Empty(t, pts)
}
