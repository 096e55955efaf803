package advance

import "github.com/shopspring/decimal"

type FeePolicy struct {
	Rate    decimal.Decimal
	Minimum decimal.Decimal
}

type Quote struct {
	RequestedAmount decimal.Decimal `json:"requestedAmount"`
	FeeAmount       decimal.Decimal `json:"feeAmount"`
	NetAmount       decimal.Decimal `json:"netAmount"`
}

// Quote splits a requested amount into the service fee and the net
// disbursement. The fee is rounded to cents; net is the exact remainder.
func (p FeePolicy) Quote(amount decimal.Decimal) Quote {
	requested := round2(amount)
	fee := round2(requested.Mul(p.Rate))
	return Quote{
		RequestedAmount: requested,
		FeeAmount:       fee,
		NetAmount:       requested.Sub(fee),
	}
}
