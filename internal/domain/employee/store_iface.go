package employee

import "context"

type StoreAPI interface {
	CreateWithUser(ctx context.Context, emp NewEmployee, account Account) (Employee, error)
	CompanyIDByRIF(ctx context.Context, rif string) (string, error)
	Get(ctx context.Context, employeeID string) (Employee, error)
	GetByUserID(ctx context.Context, userID string) (Employee, error)
	List(ctx context.Context, companyID string, filter ListFilter) ([]Employee, int, error)
	SetApproved(ctx context.Context, employeeID string, approved bool) (Employee, error)
	SetActive(ctx context.Context, employeeID string, active bool) (Employee, error)
	UpdateProfile(ctx context.Context, employeeID string, upd ProfileUpdate) (Employee, error)
	Delete(ctx context.Context, employeeID string) error
	PaymentInfo(ctx context.Context, employeeID string) (SealedPaymentInfo, error)
	UpdatePaymentInfo(ctx context.Context, employeeID string, info SealedPaymentInfo) (Employee, error)
	BankExists(ctx context.Context, code string) (bool, error)
	MarkKYCSubmitted(ctx context.Context, employeeID, documentKey string) (Employee, error)
	KYCDocumentKey(ctx context.Context, employeeID string) (string, error)
	CompanyUserIDs(ctx context.Context, companyID string) ([]string, error)
}
