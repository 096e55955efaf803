package exchangerate

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound    = errors.New("no exchange rate has been published")
	ErrInvalidRate = errors.New("exchange rate must be positive")
	ErrInvalidUSD  = errors.New("usd amount must not be negative")
)

type Rate struct {
	USDToVES  decimal.Decimal `json:"usdToVes"`
	Source    string          `json:"source"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type Conversion struct {
	USD  decimal.Decimal `json:"usd"`
	VES  decimal.Decimal `json:"ves"`
	Rate Rate            `json:"rate"`
}
