// Package adversary bundles concrete Byzantine strategies for the Dolev-Strong
// simulator. Strategies implement dsbb.Strategy and are injected into an
// engine without touching the honest-party logic; each constructor returns a
// Generator so simulations can hand strategies their randomness for
// reproducible tie-breaking.
//
// The bundled strategies respect the model's unforgeability assumption: they
// only attach their own signatures or replay chains they actually received.
// A strategy that forges honest signatures models a broken signature scheme,
// not a Byzantine party.
package adversary

import (
	"math/rand"

	"github.com/filecoin-project/go-dssim/dsbb"
)

// Generator constructs an adversary strategy for one run. The supplied rng is
// dedicated to the strategy and seeded by the simulation.
type Generator func(rng *rand.Rand) dsbb.Strategy
