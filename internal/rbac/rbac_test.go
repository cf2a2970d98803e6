package rbac

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

type staticDirectory struct {
	owner, collector common.Address
	routers          []common.Address
}

func (d staticDirectory) Owner() common.Address        { return d.owner }
func (d staticDirectory) FeeCollector() common.Address { return d.collector }
func (d staticDirectory) IsRouter(a common.Address) bool {
	for _, r := range d.routers {
		if r == a {
			return true
		}
	}
	return false
}

func TestRolesOf(t *testing.T) {
	owner := common.HexToAddress("0x01")
	collector := common.HexToAddress("0x02")
	router := common.HexToAddress("0x03")
	user := common.HexToAddress("0x04")
	d := staticDirectory{owner: owner, collector: collector, routers: []common.Address{router}}

	tests := []struct {
		name string
		addr common.Address
		perm string
		want bool
	}{
		{"owner admin", owner, PermAdmin, true},
		{"user admin", user, PermAdmin, false},
		{"collector claims fees", collector, PermClaimFees, true},
		{"owner claims fees", owner, PermClaimFees, false},
		{"router executes", router, PermExecuteAction, true},
		{"user executes", user, PermExecuteAction, false},
		{"user sells", user, PermManageCampaign, true},
		{"user claims reward", user, PermClaimReward, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(d, tt.addr, tt.perm))
		})
	}

	// renounced ownership: zero owner never matches the zero address
	assert.NotContains(t, RolesOf(staticDirectory{}, common.Address{}), RoleOwner)
}
