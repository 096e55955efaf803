package auth

const (
	RoleEmployee = "employee"
	RoleCompany  = "company"
	RoleOperator = "operator"
)

func ValidRole(role string) bool {
	switch role {
	case RoleEmployee, RoleCompany, RoleOperator:
		return true
	}
	return false
}
