package adversary

import (
	"math/rand"

	"github.com/filecoin-project/go-dssim/dsbb"
)

var _ dsbb.Strategy = (*Equivocate)(nil)

// Equivocate is a Byzantine sender that tells different parties different
// things in the initial broadcast: nominated victims receive an override
// value, everyone else the nominal broadcast value. As a non-sender it
// behaves like the reference adversary, echoing everything it is convinced
// of. Its final decision is a seeded arbitrary pick among its convinced
// values, keeping runs reproducible.
type Equivocate struct {
	overrides map[dsbb.PartyID]dsbb.Value
	rng       *rand.Rand
}

// NewEquivocate nominates per-destination override values for the sender's
// initial broadcast.
func NewEquivocate(overrides map[dsbb.PartyID]dsbb.Value) Generator {
	return func(rng *rand.Rand) dsbb.Strategy {
		cp := make(map[dsbb.PartyID]dsbb.Value, len(overrides))
		for id, v := range overrides {
			cp[id] = v
		}
		return &Equivocate{overrides: cp, rng: rng}
	}
}

func (e *Equivocate) Round0Values(broadcast dsbb.Value, dests []dsbb.PartyID) map[dsbb.PartyID]dsbb.Value {
	return e.overrides
}

func (e *Equivocate) EchoSet(state *dsbb.PartyState, round uint64) []dsbb.Echo {
	return dsbb.EchoConvinced(state)
}

func (e *Equivocate) Decide(state *dsbb.PartyState) dsbb.Decision {
	values := state.ConvincedValues()
	if len(values) == 0 {
		return dsbb.Bottom()
	}
	return dsbb.Decide(values[e.rng.Intn(len(values))])
}
