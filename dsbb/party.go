package dsbb

import "sort"

// PartyState is the engine's record for one party. The engine owns the
// authoritative table; callers only ever see deep copies via Snapshot, so a
// PartyState in caller hands can be read freely without racing the engine.
type PartyState struct {
	// ID of the party, also its index in the state table.
	ID PartyID
	// Byzantine marks the party as adversary-controlled. Fixed at
	// initialization.
	Byzantine bool
	// Convinced maps each value the party is convinced of to the round at
	// which conviction first occurred. Conviction is monotone: entries are
	// never removed.
	Convinced map[Value]uint64
	// Inbox accumulates every message addressed to this party, in delivery
	// order, across all rounds. Append-only, never truncated.
	Inbox []Message
	// Decision is the party's final output, ⊥ until Finalize.
	Decision Decision
}

func newPartyState(id PartyID, byzantine bool) *PartyState {
	return &PartyState{
		ID:        id,
		Byzantine: byzantine,
		Convinced: make(map[Value]uint64),
	}
}

// ConvincedValues returns the convinced values in ascending order. Map
// iteration order is not deterministic, so every engine path that walks the
// conviction set goes through here.
func (p *PartyState) ConvincedValues() []Value {
	values := make([]Value, 0, len(p.Convinced))
	for v := range p.Convinced {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return values
}

// Copy returns a deep copy sharing no mutable state with the original.
// Messages are immutable, so inbox entries are shared structurally but a
// holder of the copy cannot affect the engine's view.
func (p *PartyState) Copy() *PartyState {
	cp := &PartyState{
		ID:        p.ID,
		Byzantine: p.Byzantine,
		Convinced: make(map[Value]uint64, len(p.Convinced)),
		Inbox:     make([]Message, len(p.Inbox)),
		Decision:  p.Decision,
	}
	for v, r := range p.Convinced {
		cp.Convinced[v] = r
	}
	copy(cp.Inbox, p.Inbox)
	return cp
}
