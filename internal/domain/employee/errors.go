package employee

import "errors"

var (
	ErrNotFound            = errors.New("employee not found")
	ErrCompanyNotFound     = errors.New("company not found")
	ErrDuplicate           = errors.New("an employee with this email or cedula already exists")
	ErrHasAdvances         = errors.New("employee has advances and cannot be removed")
	ErrUnknownBank         = errors.New("unknown bank code")
	ErrInvalidCedula       = errors.New("cedula must look like V-12345678 or E-12345678")
	ErrInvalidPhone        = errors.New("pago movil phone must be a Venezuelan mobile number")
	ErrInvalidAccount      = errors.New("bank account must be 20 digits and start with the bank code")
	ErrUnsupportedDocument = errors.New("identity document must be a JPEG, PNG or PDF")
	ErrDocumentTooLarge    = errors.New("identity document is too large")
	ErrNoDocument          = errors.New("employee has not submitted an identity document")
	ErrNegativeSalary      = errors.New("monthly salary must not be negative")
)
