package notifications

const (
	TypeAdvanceRequested     = "advance_requested"
	TypeAdvanceStatusChanged = "advance_status_changed"
	TypeEmployeeRegistered   = "employee_registered"
	TypeEmployeeApproved     = "employee_approved"
	TypeKYCSubmitted         = "kyc_submitted"
	TypeCompanyApproved      = "company_approved"
	TypeSettlementDue        = "settlement_due"
)
