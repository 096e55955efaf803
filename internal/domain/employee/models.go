package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

type Employee struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	CompanyID        string          `json:"companyId"`
	FirstName        string          `json:"firstName"`
	LastName         string          `json:"lastName"`
	Email            string          `json:"email"`
	Cedula           string          `json:"cedula"`
	Phone            string          `json:"phone"`
	MonthlySalary    decimal.Decimal `json:"monthlySalary"`
	IsActive         bool            `json:"isActive"`
	IsVerified       bool            `json:"isVerified"`
	IsApproved       bool            `json:"isApproved"`
	SelfRegistered   bool            `json:"selfRegistered"`
	MustUploadCedula bool            `json:"mustUploadCedula"`
	KYCSubmittedAt   *time.Time      `json:"kycSubmittedAt,omitempty"`
	BankCode         string          `json:"bankCode,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (e Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// NewEmployee is the input for both creation paths.
type NewEmployee struct {
	CompanyID     string
	FirstName     string
	LastName      string
	Email         string
	Cedula        string
	Phone         string
	MonthlySalary decimal.Decimal
}

// Registration is an employee signing themselves up under an existing
// company identified by its RIF.
type Registration struct {
	CompanyRIF string
	Password   string
	NewEmployee
}

// Account carries the flags decided by the creation path.
type Account struct {
	PasswordHash       string
	MustChangePassword bool
	SelfRegistered     bool
}

type ProfileUpdate struct {
	Phone         *string
	MonthlySalary *decimal.Decimal
}

type PaymentInfo struct {
	BankCode        string `json:"bankCode"`
	BankAccount     string `json:"bankAccount"`
	PagoMovilPhone  string `json:"pagoMovilPhone"`
	PagoMovilCedula string `json:"pagoMovilCedula"`
}

// SealedPaymentInfo is PaymentInfo as stored, with account and phone
// encrypted.
type SealedPaymentInfo struct {
	BankCode        string
	BankAccount     []byte
	PagoMovilPhone  []byte
	PagoMovilCedula string
}

type ListFilter struct {
	Search   string
	Approved *bool
	Active   *bool
	Limit    int
	Offset   int
}

type Document struct {
	ContentType string
	Body        []byte
}
