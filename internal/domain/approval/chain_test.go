package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

func TestDedupeAndSequence(t *testing.T) {
	alice := &entity.User{ID: 1, Name: "Alice"}
	bob := &entity.User{ID: 2, Name: "Bob"}

	input := []entity.ApproverEntry{
		{User: alice, Level: entity.LevelManager, Sequence: 1, CanView: true},
		{User: bob, Level: entity.LevelCHRO, Sequence: 2, IsRequired: true, CanApprove: true},
		{User: nil, Level: entity.LevelCEO, Sequence: 3},
		{User: alice, Level: entity.LevelCEO, Sequence: 4, IsRequired: true, CanApprove: true},
	}

	out := DedupeAndSequence(input)
	require.Len(t, out, 2)

	assert.Equal(t, alice, out[0].User)
	assert.Equal(t, entity.LevelManager, out[0].Level)
	assert.Equal(t, 1, out[0].Sequence)
	assert.True(t, out[0].IsRequired)
	assert.True(t, out[0].CanView)
	assert.True(t, out[0].CanApprove)

	assert.Equal(t, bob, out[1].User)
	assert.Equal(t, 2, out[1].Sequence)

	// input untouched
	assert.False(t, input[0].IsRequired)
	assert.Equal(t, 4, input[3].Sequence)
}

func TestDedupeAndSequence_OrdersBySequence(t *testing.T) {
	input := []entity.ApproverEntry{
		{User: &entity.User{ID: 3}, Sequence: 5},
		{User: &entity.User{ID: 1}, Sequence: 2},
		{User: &entity.User{ID: 2}, Sequence: 2},
	}

	out := DedupeAndSequence(input)
	require.Len(t, out, 3)
	assert.Equal(t, int64(1), out[0].User.ID)
	assert.Equal(t, int64(2), out[1].User.ID)
	assert.Equal(t, int64(3), out[2].User.ID)
	for i, e := range out {
		assert.Equal(t, i+1, e.Sequence)
	}
}

func TestDedupeAndSequence_Empty(t *testing.T) {
	assert.Empty(t, DedupeAndSequence(nil))
}

func TestDecideManager(t *testing.T) {
	fired := Triggers{FlightAmount: Trigger{Fired: true}}

	assert.Equal(t, OmitManager(OmitSelfApprovalEligible), decideManager(true, fired, false))
	assert.Equal(t, OmitManager(OmitSelfApprovalEligible), decideManager(true, fired, true))
	assert.Equal(t, OmitManager(OmitGroundTransportEscalation), decideManager(false, fired, true))
	assert.Equal(t, IncludeManager(), decideManager(false, fired, false))
	assert.Equal(t, IncludeManager(), decideManager(false, Triggers{}, false))
}
