package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

type Settlement struct {
	ID           string          `json:"id"`
	CompanyID    string          `json:"companyId"`
	BillingDate  time.Time       `json:"billingDate"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	AdvanceCount int             `json:"advanceCount"`
	CreatedAt    time.Time       `json:"createdAt"`

	// AddedCount is how many advances the producing run grouped; zero when listed.
	AddedCount int `json:"addedCount,omitempty"`
}

// Summary is the job_runs detail of one settlement run.
type Summary struct {
	BillingDate string       `json:"billingDate"`
	Skipped     bool         `json:"skipped"`
	Companies   int          `json:"companies"`
	Settled     []Settlement `json:"settled"`
	Failed      []string     `json:"failed,omitempty"`
}
