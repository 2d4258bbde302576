package dsbb

import (
	"context"
	"sort"

	"github.com/filecoin-project/go-bitfield"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/xerrors"
)

// Config holds the immutable parameters of one run.
type Config struct {
	// N is the party count; parties are identified 0..N-1 and party 0 is the
	// sender.
	N int
	// F is the fault bound. The protocol runs for F+1 rounds after the
	// initial broadcast.
	F int
	// SenderValue is the value the sender broadcasts (or, for a Byzantine
	// sender, the nominal value its equivocation deviates from).
	SenderValue Value
	// ByzantineIDs selects the adversary-controlled parties. A set whose size
	// differs from F is not an error: the engine repairs it deterministically
	// and reports the repair. Ids outside [0, N) are rejected.
	ByzantineIDs []PartyID
}

// ConfigRepair records the deterministic fix-up applied to a Byzantine id set
// whose size did not match F: trimming keeps the lowest-numbered requested
// ids, padding adds the lowest-numbered unselected ids.
type ConfigRepair struct {
	Requested []PartyID
	Repaired  []PartyID
	Added     []PartyID
	Trimmed   []PartyID
}

// RoundSummary reports the observable effects of one protocol round.
type RoundSummary struct {
	// Round that was executed.
	Round uint64
	// NewlyConvinced maps each party that adopted at least one new value this
	// round to those values, ascending.
	NewlyConvinced map[PartyID][]Value
	// EchoCount is the number of echo messages produced. Zero is valid: it
	// signals no further information is propagating.
	EchoCount int
}

// DecisionTable maps every party to its final output.
type DecisionTable map[PartyID]Decision

// Copy returns an independent copy of the table.
func (t DecisionTable) Copy() DecisionTable {
	cp := make(DecisionTable, len(t))
	for id, d := range t {
		cp[id] = d
	}
	return cp
}

// Snapshot is an immutable view of a run, safe for callers to retain and
// inspect. The engine never reads it back; mutating a snapshot cannot affect
// the run it was taken from.
type Snapshot struct {
	RunID       uuid.UUID
	N           int
	F           int
	SenderValue Value
	// Byzantine is the normalized adversary set, ascending.
	Byzantine []PartyID
	// Repair is non-nil when the requested Byzantine set was fixed up.
	Repair *ConfigRepair
	// Round is the next round the engine would execute; it exceeds F+1 once
	// the run has terminated.
	Round     uint64
	Finalized bool
	Parties   []*PartyState
	// Messages is the global message log in emission order.
	Messages []Message
}

// Engine executes one Dolev-Strong broadcast run: the initial broadcast at
// construction, F+1 conviction/echo rounds via AdvanceRound, and the decision
// rule via Finalize. An engine is single-threaded and owns all run state;
// concurrent runs must each use their own engine instance.
type Engine struct {
	runID        uuid.UUID
	n            int
	f            int
	senderValue  Value
	byzantineIDs []PartyID
	repair       *ConfigRepair
	strategy     Strategy
	tracer       Tracer

	parties []*PartyState
	msgLog  []Message
	// round is the next round to execute: 1 after construction, f+2 once
	// terminated.
	round     uint64
	finalized bool
	decisions DecisionTable
}

// NewEngine validates configuration, builds the party table, runs round 0
// (initial broadcast plus the first echo wave) and leaves the engine ready
// for AdvanceRound. Fails with ErrInvalidConfig for N < 1, F > N, or an
// out-of-range Byzantine id.
func NewEngine(cfg Config, o ...Option) (*Engine, error) {
	opts, err := newOptions(o...)
	if err != nil {
		return nil, err
	}
	if cfg.N < 1 {
		return nil, newConfigError("party count %d below 1", cfg.N)
	}
	if cfg.F < 0 || cfg.F > cfg.N {
		return nil, newConfigError("fault bound %d outside [0, %d]", cfg.F, cfg.N)
	}
	byzantine, repair, err := normalizeByzantineSet(cfg.N, cfg.F, cfg.ByzantineIDs)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		runID:        uuid.New(),
		n:            cfg.N,
		f:            cfg.F,
		senderValue:  cfg.SenderValue,
		byzantineIDs: byzantine,
		repair:       repair,
		strategy:     opts.strategy,
		tracer:       opts.tracer,
		parties:      make([]*PartyState, cfg.N),
		decisions:    DecisionTable{},
	}
	isByzantine := make(map[PartyID]struct{}, len(byzantine))
	for _, id := range byzantine {
		isByzantine[id] = struct{}{}
	}
	for i := range e.parties {
		id := PartyID(i)
		_, byz := isByzantine[id]
		e.parties[i] = newPartyState(id, byz)
	}
	if repair != nil {
		e.trace("run %s: repaired byzantine set %v to %v (added %v, trimmed %v)",
			e.runID, repair.Requested, repair.Repaired, repair.Added, repair.Trimmed)
	}
	e.runRound0()
	metrics.runs.Add(context.TODO(), 1)
	return e, nil
}

// RunID identifies this run in logs and reports.
func (e *Engine) RunID() uuid.UUID {
	return e.runID
}

// Round returns the next round the engine would execute.
func (e *Engine) Round() uint64 {
	return e.round
}

// ConfigRepair returns the fix-up applied to the requested Byzantine id set,
// or nil if the set matched F as given.
func (e *Engine) ConfigRepair() *ConfigRepair {
	return e.repair
}

// runRound0 performs the initial broadcast and the round-0 echo wave, and
// sets the round counter to 1.
func (e *Engine) runRound0() {
	sender := e.parties[SenderID]
	dests := make([]PartyID, 0, e.n-1)
	for _, p := range e.parties[1:] {
		dests = append(dests, p.ID)
	}

	// Initial broadcast. An honest sender sends its value everywhere and
	// trivially convinces itself; a Byzantine sender's per-destination values
	// come from the strategy.
	values := make(map[PartyID]Value, len(dests))
	for _, d := range dests {
		values[d] = e.senderValue
	}
	if sender.Byzantine {
		for d, v := range e.strategy.Round0Values(e.senderValue, dests) {
			if _, ok := values[d]; ok {
				values[d] = v
			}
		}
		// The equivocating sender knows every value it signed.
		for _, d := range dests {
			e.convince(sender, values[d], 0)
		}
	} else {
		e.convince(sender, e.senderValue, 0)
	}
	for _, d := range dests {
		m := Message{
			Value: values[d],
			Chain: NewSignatureChain(SenderID),
			From:  SenderID,
			To:    d,
			Round: 0,
		}
		e.deliver(m)
		e.convince(e.parties[d], values[d], 0)
	}

	// Echo wave: every party relays what round 0 convinced it of. The sender
	// re-echoes its singleton chain; other parties extend the chain that
	// convinced them with their own signature. Deliveries are held back until
	// every party has chosen its echoes: round-0 messages only become visible
	// in round 1.
	type pendingEcho struct {
		from PartyID
		echo Echo
	}
	var pending []pendingEcho
	for _, p := range e.parties {
		if p.Byzantine {
			for _, echo := range e.strategy.EchoSet(p.Copy(), 0) {
				pending = append(pending, pendingEcho{p.ID, echo})
			}
			continue
		}
		for _, v := range p.ConvincedValues() {
			chain, ok := e.honestEchoChain(p, v)
			if !ok {
				continue
			}
			pending = append(pending, pendingEcho{p.ID, Echo{Value: v, Chain: chain}})
		}
	}
	for _, pe := range pending {
		e.broadcastEcho(pe.from, pe.echo, 0)
	}
	e.round = 1
}

// AdvanceRound executes the next conviction/echo round, strictly in sequence.
// Fails with ErrOutOfSequence once the round counter exceeds F+1; the caller
// must switch to Finalize. Executing the final round F+1 finalizes the run
// implicitly, so a Finalize immediately after the last AdvanceRound always
// succeeds.
func (e *Engine) AdvanceRound() (*RoundSummary, error) {
	last := uint64(e.f) + 1
	if e.round == 0 || e.round > last {
		return nil, xerrors.Errorf("round %d past final round %d: %w", e.round, last, ErrOutOfSequence)
	}
	t := e.round
	summary := &RoundSummary{
		Round:          t,
		NewlyConvinced: make(map[PartyID][]Value),
	}

	// Conviction pass over every honest party's whole inbox. Echoes are held
	// back until all parties have been evaluated: messages sent in round t
	// become visible in round t+1, never within t.
	type pendingEcho struct {
		from PartyID
		echo Echo
	}
	var pending []pendingEcho
	for _, p := range e.parties {
		if p.Byzantine {
			continue
		}
		for _, m := range p.Inbox {
			if _, ok := p.Convinced[m.Value]; ok {
				continue
			}
			if first, err := m.Chain.FirstSigner(); err != nil || first != SenderID {
				continue
			}
			if m.Chain.UniqueSignerCount() < int(t)+1 {
				continue
			}
			e.convince(p, m.Value, t)
			summary.NewlyConvinced[p.ID] = append(summary.NewlyConvinced[p.ID], m.Value)
			if p.ID == SenderID {
				pending = append(pending, pendingEcho{p.ID, Echo{m.Value, NewSignatureChain(SenderID)}})
				continue
			}
			extended, err := m.Chain.Extend(p.ID)
			if err != nil {
				// Already a signer: nothing to add, nothing to relay.
				e.trace("P%d convinced of %s by a chain it already signed, not relaying", p.ID, m.Value)
				continue
			}
			pending = append(pending, pendingEcho{p.ID, Echo{m.Value, extended}})
		}
	}
	for _, p := range e.parties {
		if !p.Byzantine {
			continue
		}
		for _, echo := range e.strategy.EchoSet(p.Copy(), t) {
			pending = append(pending, pendingEcho{p.ID, echo})
		}
	}
	for _, pe := range pending {
		summary.EchoCount += e.broadcastEcho(pe.from, pe.echo, t)
	}
	for _, vs := range summary.NewlyConvinced {
		sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	}

	e.round = t + 1
	e.trace("round %d: %d parties newly convinced, %d echoes", t, len(summary.NewlyConvinced), summary.EchoCount)
	metrics.rounds.Add(context.TODO(), 1)
	if t == last {
		e.doFinalize()
	}
	return summary, nil
}

// Finalize applies the decision rule and returns the decision table. It is
// idempotent once the run has terminated; before round F+1 completes it fails
// with ErrNotTerminated.
func (e *Engine) Finalize() (DecisionTable, error) {
	if !e.finalized {
		return nil, xerrors.Errorf("round %d of %d: %w", e.round, uint64(e.f)+1, ErrNotTerminated)
	}
	return e.decisions.Copy(), nil
}

func (e *Engine) doFinalize() {
	if e.finalized {
		return
	}
	for _, p := range e.parties {
		var d Decision
		switch values := p.ConvincedValues(); {
		case p.Byzantine:
			// Non-normative: the protocol does not constrain Byzantine
			// outputs. The strategy picks, deterministically.
			d = e.strategy.Decide(p.Copy())
		case len(values) == 1:
			d = Decide(values[0])
		default:
			d = Bottom()
		}
		p.Decision = d
		e.decisions[p.ID] = d
		metrics.decisions.Add(context.TODO(), 1, metric.WithAttributes(decisionAttr(d)))
	}
	e.finalized = true
	e.trace("run %s finalized: %d parties decided", e.runID, len(e.decisions))
}

// Snapshot returns a deep copy of the run state. Cheap enough at simulation
// scale to take after every round.
func (e *Engine) Snapshot() *Snapshot {
	parties := make([]*PartyState, len(e.parties))
	for i, p := range e.parties {
		parties[i] = p.Copy()
	}
	messages := make([]Message, len(e.msgLog))
	copy(messages, e.msgLog)
	var repair *ConfigRepair
	if e.repair != nil {
		cp := *e.repair
		repair = &cp
	}
	return &Snapshot{
		RunID:       e.runID,
		N:           e.n,
		F:           e.f,
		SenderValue: e.senderValue,
		Byzantine:   append([]PartyID(nil), e.byzantineIDs...),
		Repair:      repair,
		Round:       e.round,
		Finalized:   e.finalized,
		Parties:     parties,
		Messages:    messages,
	}
}

// convince records conviction of v at round t, preserving monotonicity: an
// existing entry is never overwritten.
func (e *Engine) convince(p *PartyState, v Value, t uint64) {
	if _, ok := p.Convinced[v]; ok {
		return
	}
	p.Convinced[v] = t
	metrics.convictions.Add(context.TODO(), 1)
}

// honestEchoChain builds the chain an honest party attaches when echoing v at
// round 0: the sender's singleton chain, or the convincing round-0 message's
// chain extended with the party's own signature.
func (e *Engine) honestEchoChain(p *PartyState, v Value) (SignatureChain, bool) {
	if p.ID == SenderID {
		return NewSignatureChain(SenderID), true
	}
	for _, m := range p.Inbox {
		if m.Value != v {
			continue
		}
		if extended, err := m.Chain.Extend(p.ID); err == nil {
			return extended, true
		}
	}
	return nil, false
}

// broadcastEcho fans an echo out to every party other than the echoer,
// appending to the global log and each recipient's inbox. Returns the number
// of messages produced.
func (e *Engine) broadcastEcho(from PartyID, echo Echo, round uint64) int {
	sent := 0
	for _, p := range e.parties {
		if p.ID == from {
			continue
		}
		e.deliver(Message{
			Value: echo.Value,
			Chain: echo.Chain,
			From:  from,
			To:    p.ID,
			Round: round,
		})
		sent++
	}
	metrics.echoes.Add(context.TODO(), int64(sent))
	return sent
}

func (e *Engine) deliver(m Message) {
	e.msgLog = append(e.msgLog, m)
	e.parties[m.To].Inbox = append(e.parties[m.To].Inbox, m)
	e.trace("deliver %s", m)
}

func (e *Engine) trace(format string, args ...any) {
	if e.tracer != nil {
		e.tracer.Log(format, args...)
	}
}

// normalizeByzantineSet dedupes and range-checks the requested adversary set,
// then repairs its size to exactly f: trim to the lowest-numbered requested
// ids, or pad with the lowest-numbered unselected ids. The bitfield both
// dedupes and yields ascending iteration.
func normalizeByzantineSet(n, f int, requested []PartyID) ([]PartyID, *ConfigRepair, error) {
	raw := make([]uint64, len(requested))
	for i, id := range requested {
		if uint64(id) >= uint64(n) {
			return nil, nil, newConfigError("byzantine id %d outside [0, %d)", id, n)
		}
		raw[i] = uint64(id)
	}
	bf := bitfield.NewFromSet(raw)
	var ids []PartyID
	if err := bf.ForEach(func(i uint64) error {
		ids = append(ids, PartyID(i))
		return nil
	}); err != nil {
		return nil, nil, xerrors.Errorf("iterating byzantine set: %w", err)
	}

	repaired := ids
	var added, trimmed []PartyID
	switch {
	case len(ids) > f:
		repaired, trimmed = ids[:f], ids[f:]
	case len(ids) < f:
		selected := make(map[PartyID]struct{}, len(ids))
		for _, id := range ids {
			selected[id] = struct{}{}
		}
		repaired = append([]PartyID(nil), ids...)
		for id := PartyID(0); len(repaired) < f; id++ {
			if _, ok := selected[id]; ok {
				continue
			}
			repaired = append(repaired, id)
			added = append(added, id)
		}
		sort.Slice(repaired, func(i, j int) bool { return repaired[i] < repaired[j] })
	}
	if len(added) == 0 && len(trimmed) == 0 && len(ids) == len(requested) {
		return repaired, nil, nil
	}
	return repaired, &ConfigRepair{
		Requested: append([]PartyID(nil), requested...),
		Repaired:  append([]PartyID(nil), repaired...),
		Added:     added,
		Trimmed:   trimmed,
	}, nil
}
