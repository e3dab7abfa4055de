package app

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/voicerooms/internal/domain"
)

// roomState is the in-memory membership state of one room.
// Everything except refs and the message fields is guarded by mu, which is the
// room's serialization boundary.
type roomState struct {
	mu   sync.Mutex
	refs atomic.Int32
	id   domain.RoomID

	loaded       bool
	room         *domain.Room
	participants map[domain.UserID]*domain.Participant
	seats        []domain.UserID // index -> holder, "" when free

	// Appends take msgMu only, never mu.
	msgMu     sync.Mutex
	lastMsgAt time.Time
}

func newRoomState(id domain.RoomID) *roomState {
	return &roomState{
		id:           id,
		participants: make(map[domain.UserID]*domain.Participant),
	}
}

// load installs the persisted room and its members and rebuilds the seat table
// from their seat indices. Rows pointing at a taken or out of range seat lose
// the seat and fall back to LISTENER.
func (st *roomState) load(room *domain.Room, members []domain.Participant) []domain.UserID {
	st.room = room
	st.seats = make([]domain.UserID, room.SpeakerSeatCount)
	st.participants = make(map[domain.UserID]*domain.Participant, len(members))
	var repaired []domain.UserID
	for i := range members {
		p := members[i]
		st.participants[p.UserID] = &p
		idx, ok := p.Seat()
		if !ok {
			if p.Role.NeedsSeat() && p.Role != domain.RoleOwner {
				p.Role = domain.RoleListener
				repaired = append(repaired, p.UserID)
			}
			continue
		}
		if idx < 0 || idx >= len(st.seats) || st.seats[idx] != "" {
			p.ClearSeat()
			if p.Role != domain.RoleOwner {
				p.Role = domain.RoleListener
			}
			repaired = append(repaired, p.UserID)
			continue
		}
		st.seats[idx] = p.UserID
	}
	if owner, ok := st.participants[room.OwnerID]; ok && !owner.HasSeat() {
		if idx, ok := st.lowestFreeSeat(0); ok {
			st.takeSeat(owner, idx)
			repaired = append(repaired, owner.UserID)
		}
	}
	st.loaded = true
	return repaired
}

func (st *roomState) participant(uid domain.UserID) (*domain.Participant, bool) {
	p, ok := st.participants[uid]
	return p, ok
}

func (st *roomState) count() int { return len(st.participants) }

func (st *roomState) ownerPresent() bool {
	_, ok := st.participants[st.room.OwnerID]
	return ok
}

// hasRoomFor reports whether a non-owner can be admitted. One slot stays
// reserved for the owner while they are away.
func (st *roomState) hasRoomFor() bool {
	limit := st.room.MaxParticipants
	if !st.ownerPresent() {
		limit--
	}
	return st.count() < limit
}

func (st *roomState) add(p *domain.Participant) { st.participants[p.UserID] = p }

func (st *roomState) remove(uid domain.UserID) {
	if p, ok := st.participants[uid]; ok {
		st.freeSeatOf(p)
		delete(st.participants, uid)
	}
}

func (st *roomState) clear() {
	st.participants = make(map[domain.UserID]*domain.Participant)
	clear(st.seats)
}

// lowestFreeSeat scans [from, speakerSeatCount) for the first empty index.
func (st *roomState) lowestFreeSeat(from int) (int, bool) {
	for i := from; i < len(st.seats); i++ {
		if st.seats[i] == "" {
			return i, true
		}
	}
	return -1, false
}

func (st *roomState) takeSeat(p *domain.Participant, idx int) {
	st.seats[idx] = p.UserID
	p.SetSeat(idx)
}

func (st *roomState) freeSeatOf(p *domain.Participant) (int, bool) {
	idx, ok := p.Seat()
	if !ok {
		return -1, false
	}
	if idx >= 0 && idx < len(st.seats) && st.seats[idx] == p.UserID {
		st.seats[idx] = ""
	}
	p.ClearSeat()
	return idx, true
}

func (st *roomState) occupancy() (int, int) {
	occupied := 0
	for _, uid := range st.seats {
		if uid != "" {
			occupied++
		}
	}
	return occupied, len(st.seats)
}

func (st *roomState) seatView() domain.SeatView {
	occupied, total := st.occupancy()
	return domain.SeatView{Seats: slices.Clone(st.seats), Occupied: occupied, Total: total}
}

// roster splits members into seated speakers (by seat index) and listeners
// (by join time). It is built under mu so a seat swap is never half visible.
func (st *roomState) roster() domain.Roster {
	r := domain.Roster{
		Speakers:  make([]domain.Participant, 0, len(st.seats)),
		Listeners: make([]domain.Participant, 0, len(st.participants)),
	}
	for _, p := range st.participants {
		if p.Role.NeedsSeat() {
			r.Speakers = append(r.Speakers, p.Clone())
		} else {
			r.Listeners = append(r.Listeners, p.Clone())
		}
	}
	slices.SortFunc(r.Speakers, func(a, b domain.Participant) int {
		ai, aok := a.Seat()
		bi, bok := b.Seat()
		switch {
		case aok && bok:
			return ai - bi
		case aok:
			return -1
		case bok:
			return 1
		}
		return a.JoinedAt.Compare(b.JoinedAt)
	})
	slices.SortFunc(r.Listeners, func(a, b domain.Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		if a.UserID < b.UserID {
			return -1
		}
		return 1
	})
	return r
}

// checkpoint captures membership so a failed commit can be undone.
type checkpoint struct {
	participants map[domain.UserID]domain.Participant
	seats        []domain.UserID
	room         *domain.Room
}

func (st *roomState) checkpoint() checkpoint {
	cp := checkpoint{
		participants: make(map[domain.UserID]domain.Participant, len(st.participants)),
		seats:        slices.Clone(st.seats),
		room:         st.room.Clone(),
	}
	for uid, p := range st.participants {
		cp.participants[uid] = p.Clone()
	}
	return cp
}

func (st *roomState) restore(cp checkpoint) {
	st.participants = make(map[domain.UserID]*domain.Participant, len(cp.participants))
	for uid, p := range cp.participants {
		st.participants[uid] = &p
	}
	st.seats = cp.seats
	st.room = cp.room
}
