package adversary

import (
	"math/rand"

	"github.com/filecoin-project/go-dssim/dsbb"
)

var _ dsbb.Strategy = (*Silent)(nil)

// Silent is a Byzantine party that never echoes anything: selective silence,
// withholding from every party equally. As a sender it still performs the
// initial broadcast (the engine always emits round-0 messages) but abandons
// its values afterwards. It never decides.
type Silent struct{}

// NewSilent constructs the silent adversary.
func NewSilent() Generator {
	return func(*rand.Rand) dsbb.Strategy {
		return Silent{}
	}
}

func (Silent) Round0Values(broadcast dsbb.Value, dests []dsbb.PartyID) map[dsbb.PartyID]dsbb.Value {
	return nil
}

func (Silent) EchoSet(*dsbb.PartyState, uint64) []dsbb.Echo {
	return nil
}

func (Silent) Decide(*dsbb.PartyState) dsbb.Decision {
	return dsbb.Bottom()
}
