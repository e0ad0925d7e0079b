package identity

import (
	"harbor-backend/internal/config"
	"harbor-backend/internal/pkg/constants"
)

// Identity is a resolved caller: wallet address, role, and the capabilities
// that role grants.
type Identity struct {
	Address      string   `json:"address"`
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
}

// Can reports whether the identity holds the capability.
func (id Identity) Can(capability string) bool {
	for _, c := range id.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Service resolves wallet addresses against the configured allow-lists.
// The lists are fixed at construction; there are no ambient globals.
type Service struct {
	superadmins map[string]bool
	operators   map[string]bool
	verifiers   map[string]bool
}

// New builds the service from config. Resolved once at process start.
func New(cfg *config.Config) *Service {
	return &Service{
		superadmins: toSet(cfg.SuperadminWallets),
		operators:   toSet(cfg.OperatorWallets),
		verifiers:   toSet(cfg.VerifierWallets),
	}
}

// Resolve maps an address to its role. Unknown addresses are investors: any
// wallet may invest or register an asset it owns, but pool administration,
// verification and distribution require an allow-listed wallet.
func (s *Service) Resolve(address string) Identity {
	role := constants.Investor
	switch {
	case s.superadmins[address]:
		role = constants.Superadmin
	case s.operators[address]:
		role = constants.Operator
	case s.verifiers[address]:
		role = constants.Verifier
	}
	return Identity{
		Address:      address,
		Role:         role,
		Capabilities: capabilitiesFor(role),
	}
}

func capabilitiesFor(role string) []string {
	var caps []string
	for capability := range constants.CapabilityRoles {
		if constants.AllowedRole(capability, role) {
			caps = append(caps, capability)
		}
	}
	return caps
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		set[v] = true
	}
	return set
}
