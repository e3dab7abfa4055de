package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/voicerooms/internal/domain"
)

func TestRole_Transition(t *testing.T) {
	tests := []struct {
		from, to domain.Role
		ok       bool
	}{
		{domain.RoleListener, domain.RoleSpeaker, true},
		{domain.RoleListener, domain.RoleModerator, true},
		{domain.RoleSpeaker, domain.RoleListener, true},
		{domain.RoleSpeaker, domain.RoleModerator, true},
		{domain.RoleModerator, domain.RoleListener, true},
		{domain.RoleModerator, domain.RoleSpeaker, false},
		{domain.RoleOwner, domain.RoleListener, false},
		{domain.RoleListener, domain.RoleOwner, false},
		{domain.RoleListener, domain.RoleListener, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := tt.from.Transition(tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrConflict)
			}
		})
	}
}

func TestRole_NeedsSeat(t *testing.T) {
	assert.True(t, domain.RoleOwner.NeedsSeat())
	assert.True(t, domain.RoleModerator.NeedsSeat())
	assert.True(t, domain.RoleSpeaker.NeedsSeat())
	assert.False(t, domain.RoleListener.NeedsSeat())
	assert.False(t, domain.Role("ADMIN").Valid())
}

func TestParticipant_CloneDetachesSeat(t *testing.T) {
	p := domain.NewParticipant("r", "u", domain.RoleSpeaker, timeZero)
	p.SetSeat(2)
	cp := p.Clone()
	p.SetSeat(3)

	idx, ok := cp.Seat()
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
}
