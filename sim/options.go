package sim

import (
	"math/rand"

	"github.com/filecoin-project/go-dssim/dsbb"
	"github.com/filecoin-project/go-dssim/sim/adversary"
)

const (
	defaultPartyCount  = 4
	defaultFaultCount  = 1
	defaultSenderValue = dsbb.Value(1)
	defaultSeed        = 0x264803e715714f95
)

type Option func(*options) error

type options struct {
	partyCount    int
	faultCount    int
	senderValue   dsbb.Value
	byzantineIDs  []dsbb.PartyID
	adversary     adversary.Generator
	rng           *rand.Rand
	traceToStdout bool
}

func newOptions(o ...Option) (*options, error) {
	opts := options{
		partyCount:  defaultPartyCount,
		faultCount:  defaultFaultCount,
		senderValue: defaultSenderValue,
	}
	for _, apply := range o {
		if err := apply(&opts); err != nil {
			return nil, err
		}
	}
	if opts.rng == nil {
		opts.rng = rand.New(rand.NewSource(defaultSeed))
	}
	return &opts, nil
}

// WithPartyCount sets n, the total party count including the sender.
func WithPartyCount(n int) Option {
	return func(o *options) error {
		o.partyCount = n
		return nil
	}
}

// WithFaultCount sets f, the Byzantine fault bound. The run spans f+1 rounds
// after the initial broadcast.
func WithFaultCount(f int) Option {
	return func(o *options) error {
		o.faultCount = f
		return nil
	}
}

// WithSenderValue sets the value the sender broadcasts.
func WithSenderValue(v dsbb.Value) Option {
	return func(o *options) error {
		o.senderValue = v
		return nil
	}
}

// WithByzantineIDs selects the adversary-controlled parties. A set whose size
// does not match the fault count is repaired by the engine and reported.
func WithByzantineIDs(ids ...dsbb.PartyID) Option {
	return func(o *options) error {
		o.byzantineIDs = ids
		return nil
	}
}

// WithAdversary sets the generator for the adversary strategy governing
// Byzantine parties. Defaults to the engine's reference strategy.
func WithAdversary(gen adversary.Generator) Option {
	return func(o *options) error {
		o.adversary = gen
		return nil
	}
}

// WithSeed seeds the randomness handed to the adversary strategy, making any
// randomized adversarial tie-breaking reproducible.
func WithSeed(seed int64) Option {
	return func(o *options) error {
		o.rng = rand.New(rand.NewSource(seed))
		return nil
	}
}

// WithTraceToStdout routes engine trace events to standard output instead of
// the debug logger.
func WithTraceToStdout() Option {
	return func(o *options) error {
		o.traceToStdout = true
		return nil
	}
}
