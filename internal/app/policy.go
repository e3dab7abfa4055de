package app

type BackpressureAction int

const (
	DropEvent BackpressureAction = iota
	Disconnect
)

// Policy decides what happens to a live subscriber whose buffer is full.
type Policy interface {
	OnBackPressure(sub *Subscription) BackpressureAction
}

// SimplePolicy disconnects slow subscribers; clients reconnect and refetch.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*Subscription) BackpressureAction {
	return Disconnect
}

// LossyPolicy drops the event and keeps the subscriber.
type LossyPolicy struct{}

func (LossyPolicy) OnBackPressure(*Subscription) BackpressureAction {
	return DropEvent
}
