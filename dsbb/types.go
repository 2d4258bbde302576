package dsbb

import (
	"strconv"
)

// PartyID identifies one of the n protocol participants.
type PartyID uint64

// SenderID is the designated sender of the broadcast. Party identities are
// fixed for the duration of a run; id 0 is always the sender.
const SenderID PartyID = 0

// Value is the payload being broadcast. The protocol is agnostic to its
// interpretation; it only ever compares values for equality.
type Value int64

func (v Value) String() string {
	return strconv.FormatInt(int64(v), 10)
}

// Decision is a party's final output: either a value or ⊥ (no decision).
// The zero value represents ⊥.
type Decision struct {
	Value   Value
	Decided bool
}

// Decide returns a decision on the given value.
func Decide(v Value) Decision {
	return Decision{Value: v, Decided: true}
}

// Bottom returns the ⊥ decision.
func Bottom() Decision {
	return Decision{}
}

func (d Decision) IsBottom() bool {
	return !d.Decided
}

func (d Decision) String() string {
	if d.IsBottom() {
		return "⊥"
	}
	return d.Value.String()
}

// Eq checks equality with another decision. Two ⊥ decisions are equal
// regardless of the value they carry.
func (d Decision) Eq(other Decision) bool {
	if d.Decided != other.Decided {
		return false
	}
	return !d.Decided || d.Value == other.Value
}

// Tracer receives diagnostic events from an engine. No tracer is installed by
// default; see WithTracer.
type Tracer interface {
	Log(format string, args ...any)
}
