package dsbb

// Echo is one value a Byzantine party chooses to propagate, together with the
// chain it attaches. The engine fans each echo out into one Message per other
// party.
type Echo struct {
	Value Value
	Chain SignatureChain
}

// Strategy determines the behavior of Byzantine parties. Honest-party logic
// never consults it; plugging in a different strategy changes only the
// adversary.
//
// Unforgeability of signatures is a model assumption, not an enforced
// property: the engine does not police the chains a strategy emits. A
// strategy that places an honest party's identity on a chain that party never
// signed is modeling a broken signature scheme, which is occasionally useful
// in tests but outside the protocol's fault model.
//
// Implementations must be deterministic for a given construction (seed
// randomness explicitly) so that runs are reproducible.
type Strategy interface {
	// Round0Values assigns the value a Byzantine sender transmits to each
	// destination in the initial broadcast. Only consulted when the sender is
	// Byzantine. Destinations absent from the returned map receive the
	// nominal broadcast value.
	Round0Values(broadcast Value, dests []PartyID) map[PartyID]Value

	// EchoSet selects what the given Byzantine party propagates at the given
	// round. state is a private copy; mutating it has no effect on the run.
	// Returning an empty set (silence) is valid.
	EchoSet(state *PartyState, round uint64) []Echo

	// Decide selects the party's final output. Byzantine decisions are not
	// constrained by the protocol; this hook exists so tests can pin them
	// down deterministically.
	Decide(state *PartyState) Decision
}

// defaultStrategy is the engine's reference adversary, used when no strategy
// option is supplied. A Byzantine sender equivocates minimally: one deviating
// value to the lowest-numbered destination, the nominal value to everyone
// else. Byzantine parties otherwise echo every value in their conviction set
// and decide like honest parties when convinced of exactly one value.
type defaultStrategy struct{}

func (defaultStrategy) Round0Values(broadcast Value, dests []PartyID) map[PartyID]Value {
	if len(dests) == 0 {
		return nil
	}
	victim := dests[0]
	for _, d := range dests[1:] {
		if d < victim {
			victim = d
		}
	}
	return map[PartyID]Value{victim: broadcast + 1}
}

func (defaultStrategy) EchoSet(state *PartyState, round uint64) []Echo {
	return EchoConvinced(state)
}

func (defaultStrategy) Decide(state *PartyState) Decision {
	if values := state.ConvincedValues(); len(values) == 1 {
		return Decide(values[0])
	}
	return Bottom()
}

// EchoConvinced builds the reference echo set for a Byzantine party: every
// value in its conviction set, each with the chain of the inbox message that
// carries it, extended with the party's own identity. Values with no inbox
// chain (the party was never legitimately convinced) are propagated on a
// fabricated singleton chain of the party's own signature. Shared by the
// bundled adversary strategies.
func EchoConvinced(state *PartyState) []Echo {
	echoes := make([]Echo, 0, len(state.Convinced))
	for _, v := range state.ConvincedValues() {
		chain := chainFor(state, v)
		echoes = append(echoes, Echo{Value: v, Chain: chain})
	}
	return echoes
}

// chainFor finds the chain this party would attach when relaying v: its own
// trivial chain if it is the sender, otherwise the first inbox chain carrying
// v extended with its own identity. Falls back to a fabricated self-signed
// chain when no usable inbox chain exists.
func chainFor(state *PartyState, v Value) SignatureChain {
	if state.ID == SenderID {
		return NewSignatureChain(SenderID)
	}
	for _, m := range state.Inbox {
		if m.Value != v || m.Chain.Has(state.ID) {
			continue
		}
		if extended, err := m.Chain.Extend(state.ID); err == nil {
			return extended
		}
	}
	return NewSignatureChain(state.ID)
}
