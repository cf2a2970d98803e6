package rbac

import "github.com/ethereum/go-ethereum/common"

// Role constants
const (
	RoleOwner        = "owner"
	RoleFeeCollector = "fee_collector"
	RoleRouter       = "router"
	RoleSeller       = "seller"
	RoleInfluencer   = "influencer"
)

// Permission constants
const (
	PermManageCampaign   = "manage_campaign"
	PermClaimUnfulfilled = "claim_unfulfilled"
	PermExecuteAction    = "execute_action"
	PermConfigureAction  = "configure_action"
	PermClaimReward      = "claim_reward"
	PermAdmin            = "admin"
	PermClaimFees        = "claim_fees"
)

// RolePermissions defines what each role can do. Ownership of a specific
// campaign is still checked by the marketplace itself.
var RolePermissions = map[string][]string{
	RoleOwner:        {PermAdmin},
	RoleFeeCollector: {PermClaimFees},
	RoleRouter:       {PermExecuteAction, PermConfigureAction},
	RoleSeller:       {PermManageCampaign, PermClaimUnfulfilled},
	RoleInfluencer:   {PermClaimReward},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// Directory resolves the fixed roles of an address. Every address is a
// potential seller and influencer.
type Directory interface {
	Owner() common.Address
	FeeCollector() common.Address
	IsRouter(addr common.Address) bool
}

func RolesOf(d Directory, addr common.Address) []string {
	var roles []string
	if addr != (common.Address{}) && addr == d.Owner() {
		roles = append(roles, RoleOwner)
	}
	if addr != (common.Address{}) && addr == d.FeeCollector() {
		roles = append(roles, RoleFeeCollector)
	}
	if d.IsRouter(addr) {
		roles = append(roles, RoleRouter)
	}
	return append(roles, RoleSeller, RoleInfluencer)
}

func Can(d Directory, addr common.Address, permission string) bool {
	for _, r := range RolesOf(d, addr) {
		if HasPermission(r, permission) {
			return true
		}
	}
	return false
}
