package gate

type Screen string

const (
	ScreenChangePassword   Screen = "change_password"
	ScreenUploadKYC        Screen = "upload_kyc"
	ScreenAwaitingApproval Screen = "awaiting_approval"
	ScreenDashboard        Screen = "dashboard"
)

type Reason string

const (
	ReasonNone         Reason = ""
	ReasonCompany      Reason = "company"
	ReasonEmployee     Reason = "employee"
	ReasonKYCSubmitted Reason = "kyc_submitted"
)

type Flags struct {
	MustChangePassword bool `json:"mustChangePassword"`
	MustUploadCedula   bool `json:"mustUploadCedula"`
	JustSubmittedKYC   bool `json:"justSubmittedKyc"`
	CompanyApproved    bool `json:"companyApproved"`
	EmployeeApproved   bool `json:"employeeApproved"`
	BillingDate        bool `json:"billingDate"`
}

type State struct {
	Screen             Screen `json:"screen"`
	Reason             Reason `json:"reason,omitempty"`
	RequestFormEnabled bool   `json:"requestFormEnabled"`
}

// ComputeGateState walks the gate checks in priority order and returns the
// first screen that applies. Only the dashboard carries a request form, and
// that form is disabled on billing dates.
func ComputeGateState(f Flags) State {
	switch {
	case f.MustChangePassword:
		return State{Screen: ScreenChangePassword}
	case f.MustUploadCedula:
		return State{Screen: ScreenUploadKYC}
	case !f.CompanyApproved:
		return State{Screen: ScreenAwaitingApproval, Reason: ReasonCompany}
	case !f.EmployeeApproved:
		return State{Screen: ScreenAwaitingApproval, Reason: ReasonEmployee}
	case f.JustSubmittedKYC:
		return State{Screen: ScreenAwaitingApproval, Reason: ReasonKYCSubmitted}
	}
	return State{Screen: ScreenDashboard, RequestFormEnabled: !f.BillingDate}
}

func (s State) CanRequestAdvance() bool {
	return s.Screen == ScreenDashboard && s.RequestFormEnabled
}
