package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveClockAppliesDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2024-03-10 is the spring-forward date in the US.
	beforeDST := time.Date(2024, 3, 9, 12, 0, 0, 0, loc)
	afterDST := time.Date(2024, 3, 10, 12, 0, 0, 0, loc)

	closingBefore, err := ResolveClock("17:30", beforeDST, loc)
	require.NoError(t, err)
	closingAfter, err := ResolveClock("17:30", afterDST, loc)
	require.NoError(t, err)

	assert.Equal(t, "17:30", closingBefore.Format("15:04"))
	assert.Equal(t, "17:30", closingAfter.Format("15:04"))
	// The same wall clock is one UTC hour earlier once DST starts.
	_, offsetBefore := closingBefore.Zone()
	_, offsetAfter := closingAfter.Zone()
	assert.Equal(t, 3600, offsetAfter-offsetBefore)
}

func TestResolveClockRejectsMalformedInput(t *testing.T) {
	day := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)

	_, err := ResolveClock("25:00", day, time.UTC)
	assert.Error(t, err)
	_, err = ResolveClock("nine", day, time.UTC)
	assert.Error(t, err)
}

func TestRoleSetTier(t *testing.T) {
	assert.Equal(t, TierTechnician, RoleSet{RoleTechnician}.Tier())
	assert.Equal(t, TierTechnician, RoleSet{RoleSpaExpert}.Tier())
	assert.Equal(t, TierReceptionist, RoleSet{RoleReceptionist, RoleTechnician}.Tier())
	assert.Equal(t, TierAdmin, RoleSet{RoleSupervisor}.Tier())
	assert.Equal(t, TierAdmin, RoleSet{RoleReceptionist, RoleManager}.Tier())
}

func TestRoleSetRoundTripsThroughSQL(t *testing.T) {
	set := RoleSet{RoleSupervisor, RoleTechnician}

	value, err := set.Value()
	require.NoError(t, err)

	var scanned RoleSet
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, set, scanned)

	var empty RoleSet
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)
}
