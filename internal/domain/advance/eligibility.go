package advance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var DefaultCapRatio = decimal.RequireFromString("0.8")

type HistoryEntry struct {
	RequestedAmount decimal.Decimal
	Status          Status
}

type Eligibility struct {
	ReferenceDate   time.Time       `json:"referenceDate"`
	WorkedWeekdays  int             `json:"workedWeekdays"`
	TotalWeekdays   int             `json:"totalWeekdays"`
	MonthlySalary   decimal.Decimal `json:"monthlySalary"`
	EarnedAmount    decimal.Decimal `json:"earnedAmount"`
	UsedAmount      decimal.Decimal `json:"usedAmount"`
	Ceiling         decimal.Decimal `json:"ceiling"`
	AvailableAmount decimal.Decimal `json:"availableAmount"`
}

// Calculator derives the advance ceiling from elapsed weekdays. Every
// aggregate is rounded to cents as soon as it is produced, so results match
// cent-for-cent with figures already shown to employees.
type Calculator struct {
	CapRatio decimal.Decimal
}

func NewCalculator(capRatio decimal.Decimal) Calculator {
	if !capRatio.IsPositive() {
		capRatio = DefaultCapRatio
	}
	return Calculator{CapRatio: capRatio}
}

func ComputeEligibility(referenceDate time.Time, monthlySalary decimal.Decimal, history []HistoryEntry) (Eligibility, error) {
	return NewCalculator(DefaultCapRatio).Compute(referenceDate, monthlySalary, history)
}

func (c Calculator) Compute(referenceDate time.Time, monthlySalary decimal.Decimal, history []HistoryEntry) (Eligibility, error) {
	if monthlySalary.IsNegative() {
		return Eligibility{}, ErrNegativeSalary
	}
	worked, total := MonthWeekdays(referenceDate)
	if total == 0 {
		return Eligibility{}, ErrNoWeekdays
	}

	used, err := UsedAmount(history)
	if err != nil {
		return Eligibility{}, err
	}

	earned := round2(monthlySalary.Mul(decimal.NewFromInt(int64(worked))).Div(decimal.NewFromInt(int64(total))))
	ceiling := round2(earned.Mul(c.CapRatio))
	available := ceiling.Sub(used)
	if available.IsNegative() {
		available = decimal.Zero
	}

	return Eligibility{
		ReferenceDate:   dateOnly(referenceDate),
		WorkedWeekdays:  worked,
		TotalWeekdays:   total,
		MonthlySalary:   monthlySalary,
		EarnedAmount:    earned,
		UsedAmount:      used,
		Ceiling:         ceiling,
		AvailableAmount: available,
	}, nil
}

// UsedAmount sums requested amounts of advances that still count against
// the ceiling.
func UsedAmount(history []HistoryEntry) (decimal.Decimal, error) {
	sum := decimal.Zero
	for i, entry := range history {
		status, err := ParseStatus(string(entry.Status))
		if err != nil {
			return decimal.Zero, fmt.Errorf("history entry %d: %w", i, err)
		}
		if status.CountsAgainstCap() {
			sum = sum.Add(entry.RequestedAmount)
		}
	}
	return round2(sum), nil
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
