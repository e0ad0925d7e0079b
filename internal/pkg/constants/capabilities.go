package constants

const (
	ViewData           = "view_data"
	CreatePool         = "create_pool"
	ClosePool          = "close_pool"
	Invest             = "invest"
	DistributeDividend = "distribute_dividend"
	SubmitReport       = "submit_report"
	VerifyReport       = "verify_report"
	DistributeRevenue  = "distribute_revenue"
	RegisterAsset      = "register_asset"
)

// CapabilityRoles maps each capability to the roles allowed to exercise it.
var CapabilityRoles = map[string][]string{
	ViewData:           {Investor, Verifier, Operator, Superadmin},
	CreatePool:         {Operator, Superadmin},
	ClosePool:          {Operator, Superadmin},
	Invest:             {Investor, Verifier, Operator, Superadmin},
	DistributeDividend: {Operator, Superadmin},
	SubmitReport:       {Investor, Operator, Superadmin},
	VerifyReport:       {Verifier, Superadmin},
	DistributeRevenue:  {Operator, Superadmin},
	RegisterAsset:      {Investor, Operator, Superadmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the capability.
func AllowedRole(capability, role string) bool {
	roles, ok := CapabilityRoles[capability]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
