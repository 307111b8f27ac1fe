package research

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"alpha_portfolios/internal/models"
)

const (
	FinnhubBaseURL = "https://finnhub.io/api/v1"
	NewsAPIBaseURL = "https://newsapi.org/v2"

	newsLookback = 7 * 24 * time.Hour
	maxHeadlines = 10
)

// FinnhubNews fetches company news from Finnhub.
type FinnhubNews struct {
	client *resty.Client
	apiKey string
	now    func() time.Time
}

func NewFinnhubNews(baseURL, apiKey string) *FinnhubNews {
	client := resty.New()
	client.SetBaseURL(baseURL)
	return &FinnhubNews{client: client, apiKey: apiKey, now: time.Now}
}

type finnhubArticle struct {
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

func (f *FinnhubNews) Name() string { return "finnhub" }

func (f *FinnhubNews) News(ctx context.Context, symbol string) ([]models.NewsItem, error) {
	if f.apiKey == "" {
		return nil, fmt.Errorf("finnhub API key not configured")
	}
	to := f.now()
	from := to.Add(-newsLookback)

	var articles []finnhubArticle
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"from":   from.Format("2006-01-02"),
			"to":     to.Format("2006-01-02"),
			"token":  f.apiKey,
		}).
		SetResult(&articles).
		Get("/company-news")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("finnhub API error %d", resp.StatusCode())
	}

	items := make([]models.NewsItem, 0, min(len(articles), maxHeadlines))
	for _, a := range articles {
		if len(items) == maxHeadlines {
			break
		}
		items = append(items, models.NewsItem{
			Headline:    a.Headline,
			Summary:     a.Summary,
			Source:      a.Source,
			URL:         a.URL,
			PublishedAt: time.Unix(a.DateTime, 0).UTC(),
		})
	}
	return items, nil
}

// NewsAPI fetches articles mentioning the symbol from newsapi.org.
type NewsAPI struct {
	client *resty.Client
	apiKey string
}

func NewNewsAPI(baseURL, apiKey string) *NewsAPI {
	client := resty.New()
	client.SetBaseURL(baseURL)
	return &NewsAPI{client: client, apiKey: apiKey}
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (n *NewsAPI) Name() string { return "newsapi" }

func (n *NewsAPI) News(ctx context.Context, symbol string) ([]models.NewsItem, error) {
	if n.apiKey == "" {
		return nil, fmt.Errorf("newsapi key not configured")
	}
	var out newsAPIResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        symbol,
			"sortBy":   "publishedAt",
			"pageSize": fmt.Sprint(maxHeadlines),
			"apiKey":   n.apiKey,
		}).
		SetResult(&out).
		Get("/everything")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("newsapi error %d", resp.StatusCode())
	}

	items := make([]models.NewsItem, 0, len(out.Articles))
	for _, a := range out.Articles {
		items = append(items, models.NewsItem{
			Headline:    a.Title,
			Summary:     a.Description,
			Source:      a.Source.Name,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
		})
	}
	return items, nil
}
