package constants

const (
	Superadmin = "superadmin"
	Operator   = "operator"
	Verifier   = "verifier"
	Investor   = "investor"
)

// ValidRoles is the set of roles the identity service may resolve. Asset
// ownership is not a role: it is proven per-asset against the ledger.
var ValidRoles = []string{Investor, Verifier, Operator, Superadmin}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
