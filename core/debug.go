package core

import "strconv"

// DebugWriter receives one line of diagnostic text.
type DebugWriter func(string)

// Event identifies an entry of the timing ring.
type Event uint8

const (
	EvtUnderrun   Event = iota + 1 // compare event found the queue empty
	EvtStall                       // producer waited for queue space
	EvtGuardWait                   // prescale change deferred by the guard window
	EvtGroupReset                  // group reset
	EvtPrescale                    // prescale written
	EvtModeChange                  // scheduler switched animation
)

func (e Event) String() string {
	switch e {
	case EvtUnderrun:
		return "UNDERRUN"
	case EvtStall:
		return "STALL"
	case EvtGuardWait:
		return "GUARD_WAIT"
	case EvtGroupReset:
		return "RESET"
	case EvtPrescale:
		return "PRESCALE"
	case EvtModeChange:
		return "MODE"
	}
	return "UNKNOWN"
}

// TimingEvent is one post-mortem record. At holds a counter or phase
// value; A and B depend on the event.
type TimingEvent struct {
	Event   Event
	Channel uint8
	At      uint32
	A       uint32
	B       uint32
}

// TimingRingSize is the number of events kept.
const TimingRingSize = 32

var (
	debugWriter DebugWriter

	timingRing [TimingRingSize]TimingEvent
	timingHead uint8
)

// SetDebugWriter installs the sink used by DumpTimingRing.
func SetDebugWriter(w DebugWriter) {
	debugWriter = w
}

// RecordTiming appends an event to the ring, overwriting the oldest. It
// does not allocate and may be called from a compare handler.
func RecordTiming(evt Event, channel uint8, at, a, b uint32) {
	state := lockRing()
	timingRing[timingHead] = TimingEvent{Event: evt, Channel: channel, At: at, A: a, B: b}
	timingHead = (timingHead + 1) % TimingRingSize
	unlockRing(state)
}

// TimingEvents returns the recorded events, oldest first.
func TimingEvents() []TimingEvent {
	state := lockRing()
	defer unlockRing(state)

	out := make([]TimingEvent, 0, TimingRingSize)
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(timingHead+i)%TimingRingSize]
		if evt.Event != 0 {
			out = append(out, evt)
		}
	}
	return out
}

// DumpTimingRing writes every recorded event through the debug writer.
// Foreground only.
func DumpTimingRing() {
	if debugWriter == nil {
		return
	}
	for _, evt := range TimingEvents() {
		debugWriter(evt.Event.String() +
			" ch=" + strconv.Itoa(int(evt.Channel)) +
			" at=" + strconv.FormatUint(uint64(evt.At), 10) +
			" a=" + strconv.FormatUint(uint64(evt.A), 10) +
			" b=" + strconv.FormatUint(uint64(evt.B), 10))
	}
}

// ClearTimingRing drops every recorded event.
func ClearTimingRing() {
	state := lockRing()
	defer unlockRing(state)
	timingRing = [TimingRingSize]TimingEvent{}
	timingHead = 0
}
