package domain

import "time"

// Role is the closed set of participant roles inside a room.
type Role string

const (
	RoleOwner     Role = "OWNER"
	RoleModerator Role = "MODERATOR"
	RoleSpeaker   Role = "SPEAKER"
	RoleListener  Role = "LISTENER"
)

// transitions lists the moves allowed between member roles.
// OWNER is entered only on creation or re-entry and never left while present.
var transitions = map[Role][]Role{
	RoleListener:  {RoleSpeaker, RoleModerator},
	RoleSpeaker:   {RoleListener, RoleModerator},
	RoleModerator: {RoleListener},
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleModerator, RoleSpeaker, RoleListener:
		return true
	}
	return false
}

// NeedsSeat reports whether the role couples to a speaker seat.
func (r Role) NeedsSeat() bool {
	return r == RoleOwner || r == RoleModerator || r == RoleSpeaker
}

// CanModerate reports whether the role carries administrative rights.
func (r Role) CanModerate() bool {
	return r == RoleOwner || r == RoleModerator
}

// Transition checks a role change and returns ErrInvalidTransition when the
// move is not part of the role state machine.
func (r Role) Transition(to Role) error {
	for _, allowed := range transitions[r] {
		if allowed == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// Participant is a user's membership record in one room.
// SeatIndex is a projection of the seat table, never written independently.
type Participant struct {
	RoomID    RoomID    `json:"roomId"`
	UserID    UserID    `json:"userId"`
	Role      Role      `json:"role"`
	SeatIndex *int      `json:"seatIndex,omitempty"`
	IsMuted   bool      `json:"isMuted"`
	JoinedAt  time.Time `json:"joinedAt"`
}

func NewParticipant(roomID RoomID, userID UserID, role Role, now time.Time) *Participant {
	return &Participant{RoomID: roomID, UserID: userID, Role: role, JoinedAt: now}
}

func (p *Participant) HasSeat() bool { return p.SeatIndex != nil }

func (p *Participant) Seat() (int, bool) {
	if p.SeatIndex == nil {
		return 0, false
	}
	return *p.SeatIndex, true
}

func (p *Participant) SetSeat(idx int) { p.SeatIndex = &idx }

func (p *Participant) ClearSeat() { p.SeatIndex = nil }

// Clone returns a value copy safe to hand outside the room boundary.
func (p *Participant) Clone() Participant {
	cp := *p
	if p.SeatIndex != nil {
		idx := *p.SeatIndex
		cp.SeatIndex = &idx
	}
	return cp
}

// Roster is the participant list split the way clients render it.
type Roster struct {
	Speakers  []Participant `json:"speakers"`
	Listeners []Participant `json:"listeners"`
}

func (r Roster) Count() int { return len(r.Speakers) + len(r.Listeners) }

// Has reports whether userID appears in either list.
func (r Roster) Has(userID UserID) bool {
	for _, list := range [][]Participant{r.Speakers, r.Listeners} {
		for i := range list {
			if list[i].UserID == userID {
				return true
			}
		}
	}
	return false
}

// SeatView is the seat assignment table: index -> holder, empty when free.
type SeatView struct {
	Seats    []UserID `json:"seats"`
	Occupied int      `json:"occupied"`
	Total    int      `json:"total"`
}
