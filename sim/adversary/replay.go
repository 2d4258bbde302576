package adversary

import (
	"math/rand"

	"github.com/filecoin-project/go-dssim/dsbb"
)

var _ dsbb.Strategy = (*Replay)(nil)

// Replay re-circulates every sender-originated chain it has received, without
// adding its own signature. The replayed chains carry no new signer, so they
// can never satisfy a later round's signer bound: the strategy exercises the
// conviction rule's dedup-by-signer and round-bound checks under message
// duplication.
type Replay struct{}

// NewReplay constructs the chain-replaying adversary.
func NewReplay() Generator {
	return func(*rand.Rand) dsbb.Strategy {
		return Replay{}
	}
}

func (Replay) Round0Values(broadcast dsbb.Value, dests []dsbb.PartyID) map[dsbb.PartyID]dsbb.Value {
	return nil
}

func (Replay) EchoSet(state *dsbb.PartyState, round uint64) []dsbb.Echo {
	var echoes []dsbb.Echo
	seen := make(map[string]struct{})
	for _, m := range state.Inbox {
		if first, err := m.Chain.FirstSigner(); err != nil || first != dsbb.SenderID {
			continue
		}
		key := m.Value.String() + m.Chain.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		echoes = append(echoes, dsbb.Echo{Value: m.Value, Chain: m.Chain})
	}
	return echoes
}

func (Replay) Decide(*dsbb.PartyState) dsbb.Decision {
	return dsbb.Bottom()
}
