package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstone/inventory-engine/ledger"
)

func holdingTeams() []ledger.Team {
	return []ledger.Team{
		{ID: "t1", Name: "Civil-A", Role: ledger.RoleCivil},
		{ID: "t2", Name: "Civil-B", Role: ledger.RoleCivil, Allocations: []ledger.MaterialAllocation{
			{ID: "a1", Name: "GI Strip", UnitsAllocated: d(10)},
		}},
		{ID: "t3", Name: "Electrical-A", Role: ledger.RoleElectrical, Allocations: []ledger.MaterialAllocation{
			{ID: "a2", Name: "GI Strip", UnitsAllocated: d(500)},
			{ID: "a3", Name: "Cable-95mm", UnitsAllocated: d(100)},
		}},
	}
}

func TestRolePreferred_SameRoleWinsOverStockSize(t *testing.T) {
	teams := holdingTeams()
	acting := &teams[0] // Civil-A

	m := ledger.RolePreferred(teams, "GI Strip", acting)
	require.NotNil(t, m)
	assert.Equal(t, "t2", m.TeamID, "role match beats the larger electrical lot")
}

func TestRolePreferred_FallsBackToFirstHolderInTeamOrder(t *testing.T) {
	teams := holdingTeams()
	acting := &teams[0] // Civil-A, no civil team holds cable

	m := ledger.RolePreferred(teams, "Cable-95mm", acting)
	require.NotNil(t, m)
	assert.Equal(t, "t3", m.TeamID)
	assert.Equal(t, "Cable-95mm", m.Allocation.Name)
}

func TestRolePreferred_NoHolderAnywhere_Nil(t *testing.T) {
	teams := holdingTeams()
	assert.Nil(t, ledger.RolePreferred(teams, "Earthing Rod", &teams[0]))
}

func TestRolePreferred_ActingTeamItselfQualifies(t *testing.T) {
	// The acting team trivially matches its own role, so its own allocation
	// wins when it comes first in team order.
	teams := holdingTeams()
	acting := &teams[1] // Civil-B holds GI Strip itself

	m := ledger.RolePreferred(teams, "GI Strip", acting)
	require.NotNil(t, m)
	assert.Equal(t, "t2", m.TeamID)
}

func TestExactTeam_OnlyOwnAllocationQualifies(t *testing.T) {
	teams := holdingTeams()

	m := ledger.ExactTeam(teams, "GI Strip", &teams[1])
	require.NotNil(t, m)
	assert.Equal(t, "t2", m.TeamID)

	assert.Nil(t, ledger.ExactTeam(teams, "GI Strip", &teams[0]),
		"strict policy refuses other teams' stock")
	assert.Nil(t, ledger.ExactTeam(teams, "Cable-95mm", &teams[1]))
}
