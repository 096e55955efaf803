package gate

import (
	"errors"
	"time"
)

var ErrNotEmployee = errors.New("user has no employee profile")

// Subject is the persisted state the gate reads for one employee user.
type Subject struct {
	UserID             string
	EmployeeID         string
	CompanyID          string
	MustChangePassword bool
	MustUploadCedula   bool
	KYCSubmittedAt     *time.Time
	CompanyApproved    bool
	EmployeeApproved   bool
	EmployeeActive     bool
}
