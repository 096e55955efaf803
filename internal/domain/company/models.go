package company

import "time"

type Company struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	RIF        string     `json:"rif"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	Address    string     `json:"address"`
	IsApproved bool       `json:"isApproved"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Registration is a company signing itself up. Email and Password become
// the login of the company's first user.
type Registration struct {
	Name     string
	RIF      string
	Email    string
	Phone    string
	Address  string
	Password string
}

type ListFilter struct {
	Approved *bool
	Limit    int
	Offset   int
}
