package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"alpha_portfolios/internal/apperrors"
	"alpha_portfolios/internal/models"
)

// Placeholders every prompt template must contain.
const (
	PlaceholderStrategy  = "{strategy}"
	PlaceholderPortfolio = "{portfolio}"
	PlaceholderResearch  = "{research}"
)

// DefaultTemplate is used when a portfolio has no custom prompt.
const DefaultTemplate = `You manage a brokerage account with a {strategy} strategy.

Account:
{portfolio}

Research:
{research}

Answer with one word, buy, sell or hold, then a one-sentence reason.`

var strategyGuidance = map[string]string{
	"momentum":       "Favour symbols with rising prices, positive news flow and price above the 20-day average. Exit when momentum fades.",
	"mean_reversion": "Favour symbols that moved far from their 20-day average and are likely to revert. RSI below 30 suggests buying, above 70 selling.",
	"value":          "Favour symbols trading at a low earnings multiple relative to their 52-week range. Ignore short-term news noise.",
	"default":        "Balance fundamentals, news sentiment and technicals. Prefer holding when signals disagree.",
}

// Guidance returns the system instruction for a strategy type. Unknown
// strategies get the default guidance.
func Guidance(strategy string) string {
	if g, ok := strategyGuidance[strings.ToLower(strings.TrimSpace(strategy))]; ok {
		return g
	}
	return strategyGuidance["default"]
}

// ValidateTemplate rejects a non-empty template missing any placeholder.
func ValidateTemplate(tmpl string) error {
	if tmpl == "" {
		return nil
	}
	var missing []string
	for _, p := range []string{PlaceholderStrategy, PlaceholderPortfolio, PlaceholderResearch} {
		if !strings.Contains(tmpl, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", apperrors.ErrInvalidPromptTemplate, strings.Join(missing, ", "))
	}
	return nil
}

// BuildPrompt fills the template (or DefaultTemplate) for a request.
func BuildPrompt(req Request) (string, error) {
	tmpl := req.PromptTemplate
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	if err := ValidateTemplate(tmpl); err != nil {
		return "", err
	}

	account, err := json.MarshalIndent(req.Account, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode account: %w", err)
	}
	research, err := json.MarshalIndent(req.Research, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode research: %w", err)
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = "default"
	}
	return strings.NewReplacer(
		PlaceholderStrategy, strategy,
		PlaceholderPortfolio, string(account),
		PlaceholderResearch, string(research),
	).Replace(tmpl), nil
}

// Action is the classified decision.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
	Hold Action = "hold"
)

// Classify maps decision text to an action by its leading token,
// case-insensitively. Anything other than buy or sell holds.
func Classify(text string) Action {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(t, string(Buy)):
		return Buy
	case strings.HasPrefix(t, string(Sell)):
		return Sell
	default:
		return Hold
	}
}

// Account is the account view serialized into the prompt.
type Account struct {
	Portfolio  string            `json:"portfolio"`
	Cash       string            `json:"cash"`
	TotalValue string            `json:"total_value"`
	Holdings   map[string]string `json:"holdings"`
}

// Request is one decision query.
type Request struct {
	Account        Account
	Strategy       string
	Research       models.Research
	PromptTemplate string
}
