package sim

import (
	"fmt"
	"strings"

	logging "github.com/ipfs/go-log/v2"

	"github.com/filecoin-project/go-dssim/dsbb"
)

var log = logging.Logger("dssim/sim")

// Engine tracer backed by a zap logger.
type engineTracer logging.ZapEventLogger

// Log fulfills the dsbb.Tracer interface.
func (t *engineTracer) Log(format string, args ...any) {
	(*logging.ZapEventLogger)(t).Debugf(format, args...)
}

var defaultTracer dsbb.Tracer = (*engineTracer)(logging.WithSkip(logging.Logger("dssim/engine"), 2))

// stdoutTracer prints engine events directly, for interactive use.
type stdoutTracer struct{}

func (stdoutTracer) Log(format string, args ...any) {
	fmt.Printf("engine: "+format+"\n", args...)
}

// Simulation drives one Dolev-Strong run from initial broadcast to property
// verification.
type Simulation struct {
	Engine *dsbb.Engine

	faultCount int
}

// NewSimulation initializes a run from the given options. The engine performs
// the initial broadcast immediately; any repair of the Byzantine id set is
// logged here so callers see it even without a tracer installed.
func NewSimulation(o ...Option) (*Simulation, error) {
	opts, err := newOptions(o...)
	if err != nil {
		return nil, err
	}
	tracer := defaultTracer
	if opts.traceToStdout {
		tracer = stdoutTracer{}
	}
	engineOpts := []dsbb.Option{dsbb.WithTracer(tracer)}
	if opts.adversary != nil {
		engineOpts = append(engineOpts, dsbb.WithStrategy(opts.adversary(opts.rng)))
	}
	engine, err := dsbb.NewEngine(dsbb.Config{
		N:            opts.partyCount,
		F:            opts.faultCount,
		SenderValue:  opts.senderValue,
		ByzantineIDs: opts.byzantineIDs,
	}, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	if repair := engine.ConfigRepair(); repair != nil {
		log.Warnw("byzantine id set repaired to match fault count",
			"run", engine.RunID(),
			"requested", repair.Requested,
			"repaired", repair.Repaired,
			"added", repair.Added,
			"trimmed", repair.Trimmed)
	}
	return &Simulation{Engine: engine, faultCount: opts.faultCount}, nil
}

// Run advances the protocol through all F+1 rounds, finalizes, and returns
// the property report for the completed run.
func (s *Simulation) Run() (*dsbb.PropertyReport, error) {
	last := uint64(s.faultCount) + 1
	for s.Engine.Round() <= last {
		if _, err := s.Engine.AdvanceRound(); err != nil {
			return nil, fmt.Errorf("failed to advance round: %w", err)
		}
	}
	if _, err := s.Engine.Finalize(); err != nil {
		return nil, fmt.Errorf("failed to finalize run: %w", err)
	}
	return dsbb.Verify(s.Engine.Snapshot())
}

// Describe renders every party's state, one line each.
func (s *Simulation) Describe() string {
	snap := s.Engine.Snapshot()
	var b strings.Builder
	for _, p := range snap.Parties {
		role := "honest"
		if p.Byzantine {
			role = "byzantine"
		}
		fmt.Fprintf(&b, "P%d (%s): convinced of %v, decided %s\n",
			p.ID, role, p.ConvincedValues(), p.Decision)
	}
	return b.String()
}

// PrintResults reports parties that failed to decide or decided differently
// from the first honest party.
func (s *Simulation) PrintResults() {
	snap := s.Engine.Snapshot()
	var first dsbb.Decision
	firstSet := false
	for _, p := range snap.Parties {
		if p.Byzantine {
			continue
		}
		if !firstSet {
			first = p.Decision
			firstSet = true
		}
		if p.Decision.IsBottom() {
			fmt.Printf("‼️ Party %d did not decide\n", p.ID)
		} else if !p.Decision.Eq(first) {
			fmt.Printf("‼️ Party %d decided %s, but the first honest party decided %s\n", p.ID, p.Decision, first)
		}
	}
}
