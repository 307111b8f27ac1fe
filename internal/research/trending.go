package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const YahooBaseURL = "https://query1.finance.yahoo.com"

// YahooTrending lists trending US tickers.
type YahooTrending struct {
	client *resty.Client
}

func NewYahooTrending(baseURL string) *YahooTrending {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("User-Agent", "Mozilla/5.0")
	return &YahooTrending{client: client}
}

type trendingResponse struct {
	Finance struct {
		Result []struct {
			Quotes []struct {
				Symbol string `json:"symbol"`
			} `json:"quotes"`
		} `json:"result"`
	} `json:"finance"`
}

func (y *YahooTrending) Trending(ctx context.Context, limit int) ([]string, error) {
	var out trendingResponse
	resp, err := y.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/finance/trending/US")
	if err != nil {
		return nil, fmt.Errorf("fetch trending: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("trending API error %d", resp.StatusCode())
	}

	seen := make(map[string]bool)
	var symbols []string
	for _, r := range out.Finance.Result {
		for _, q := range r.Quotes {
			sym := strings.ToUpper(strings.TrimSpace(q.Symbol))
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			symbols = append(symbols, sym)
			if limit > 0 && len(symbols) == limit {
				return symbols, nil
			}
		}
	}
	return symbols, nil
}
