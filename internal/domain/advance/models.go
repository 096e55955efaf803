package advance

import (
	"time"

	"github.com/shopspring/decimal"
)

type Advance struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employeeId"`
	CompanyID       string          `json:"companyId"`
	EmployeeName    string          `json:"employeeName,omitempty"`
	EmployeeCedula  string          `json:"employeeCedula,omitempty"`
	RequestedAmount decimal.Decimal `json:"requestedAmount"`
	FeeAmount       decimal.Decimal `json:"feeAmount"`
	NetAmount       decimal.Decimal `json:"netAmount"`
	Status          Status          `json:"status"`
	StatusNote      string          `json:"statusNote,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Profile is the slice of the employee row the advance flow needs.
type Profile struct {
	EmployeeID    string
	UserID        string
	CompanyID     string
	FullName      string
	Cedula        string
	MonthlySalary decimal.Decimal
	Active        bool
}

type NewAdvance struct {
	EmployeeID string
	CompanyID  string
	Quote      Quote
}

type Actor struct {
	UserID    string
	Role      string
	CompanyID string
}

type ListFilter struct {
	CompanyID string
	Status    Status
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

type Overview struct {
	Eligibility Eligibility `json:"eligibility"`
	FeeRate     string      `json:"feeRate"`
	MinAmount   string      `json:"minAmount"`
}
