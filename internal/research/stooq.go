package research

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"alpha_portfolios/internal/models"
)

const StooqBaseURL = "https://stooq.com"

// Stooq reads quotes and daily history from stooq.com CSV endpoints. It
// serves both as a HistorySource and as the benchmark price source.
type Stooq struct {
	client *resty.Client
}

func NewStooq(baseURL string) *Stooq {
	client := resty.New()
	client.SetBaseURL(baseURL)
	return &Stooq{client: client}
}

func (s *Stooq) getCSV(ctx context.Context, path string, params map[string]string) ([]map[string]string, error) {
	resp, err := s.client.R().SetContext(ctx).SetQueryParams(params).Get(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("stooq error %d", resp.StatusCode())
	}

	r := csv.NewReader(strings.NewReader(resp.String()))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse stooq csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}
	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[strings.TrimSpace(h)] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Latest returns the most recent close for symbol.
func (s *Stooq) Latest(ctx context.Context, symbol string) (models.CurvePoint, error) {
	rows, err := s.getCSV(ctx, "/q/l/", map[string]string{
		"s": strings.ToLower(symbol),
		"f": "sd2t2ohlcv",
		"h": "",
		"e": "csv",
	})
	if err != nil {
		return models.CurvePoint{}, err
	}
	if len(rows) == 0 {
		return models.CurvePoint{}, fmt.Errorf("no quote for %s", symbol)
	}
	row := rows[0]
	closeVal, err := decimal.NewFromString(row["Close"])
	if err != nil {
		return models.CurvePoint{}, fmt.Errorf("no close for %s: %q", symbol, row["Close"])
	}
	ts, err := time.Parse("2006-01-02 15:04:05", row["Date"]+" "+row["Time"])
	if err != nil {
		ts, err = time.Parse("2006-01-02", row["Date"])
		if err != nil {
			return models.CurvePoint{}, fmt.Errorf("bad date for %s: %q", symbol, row["Date"])
		}
	}
	return models.CurvePoint{Time: ts, Value: closeVal}, nil
}

func (s *Stooq) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	rows, err := s.getCSV(ctx, "/q/d/l/", map[string]string{
		"s": strings.ToLower(symbol),
		"i": "d",
	})
	if err != nil {
		return nil, err
	}
	startDay := start.Truncate(24 * time.Hour)
	out := make([]models.PricePoint, 0, len(rows))
	for _, row := range rows {
		dt, err := time.Parse("2006-01-02", row["Date"])
		if err != nil {
			continue
		}
		c, err := strconv.ParseFloat(row["Close"], 64)
		if err != nil {
			continue
		}
		if dt.Before(startDay) || dt.After(end) {
			continue
		}
		out = append(out, models.PricePoint{Time: dt, Close: c})
	}
	return out, nil
}
