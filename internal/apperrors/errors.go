package apperrors

import "errors"

// Configuration errors are returned synchronously by mutating calls.
// The portfolio collection and the portfolio itself are left unchanged.
var (
	// ErrInvalidCredentials indicates an empty API key or secret key.
	ErrInvalidCredentials = errors.New("invalid credentials: api key and secret key are required")

	// ErrDuplicateCredentials indicates that another portfolio already trades with the same key pair.
	ErrDuplicateCredentials = errors.New("duplicate credentials: key pair already used by another portfolio")

	// ErrDuplicateName indicates that a portfolio with the same name is already managed.
	ErrDuplicateName = errors.New("duplicate portfolio name")

	// ErrInvalidName indicates an empty portfolio name.
	ErrInvalidName = errors.New("portfolio name is required")

	// ErrInvalidPromptTemplate indicates a custom prompt missing one of the required placeholders.
	ErrInvalidPromptTemplate = errors.New("invalid prompt template")

	// ErrInvalidThreshold indicates a risk threshold outside of its allowed range.
	ErrInvalidThreshold = errors.New("invalid risk threshold")
)

// Lookup errors.
var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrTradeNotFound     = errors.New("trade not found")
)

// Trading errors.
var (
	// ErrPriceUnavailable indicates that no tradable price could be obtained for a symbol.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrInvalidQuantity indicates a non-positive order quantity.
	ErrInvalidQuantity = errors.New("order quantity must be positive")

	// ErrUnknownPeriod indicates a PnL aggregation period other than day, week or month.
	ErrUnknownPeriod = errors.New("unknown aggregation period")
)
