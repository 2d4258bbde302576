package dsbb_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-dssim/dsbb"
)

// equivocatingSender is a Byzantine sender that tells nominated parties a
// different value in the initial broadcast, echoes everything it signed, and
// never decides.
type equivocatingSender struct {
	overrides map[dsbb.PartyID]dsbb.Value
}

func (s equivocatingSender) Round0Values(_ dsbb.Value, _ []dsbb.PartyID) map[dsbb.PartyID]dsbb.Value {
	return s.overrides
}

func (s equivocatingSender) EchoSet(state *dsbb.PartyState, _ uint64) []dsbb.Echo {
	return dsbb.EchoConvinced(state)
}

func (s equivocatingSender) Decide(_ *dsbb.PartyState) dsbb.Decision {
	return dsbb.Bottom()
}

func TestNewEngine_ConfigValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  dsbb.Config
	}{
		{
			name: "party count below one",
			cfg:  dsbb.Config{N: 0, F: 0},
		},
		{
			name: "negative fault bound",
			cfg:  dsbb.Config{N: 3, F: -1},
		},
		{
			name: "fault bound exceeds party count",
			cfg:  dsbb.Config{N: 3, F: 4},
		},
		{
			name: "byzantine id out of range",
			cfg:  dsbb.Config{N: 3, F: 1, ByzantineIDs: []dsbb.PartyID{5}},
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			_, err := dsbb.NewEngine(test.cfg)
			require.ErrorIs(t, err, dsbb.ErrInvalidConfig)
		})
	}
}

func TestNewEngine_ByzantineSetRepair(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		cfg          dsbb.Config
		wantRepair   bool
		wantRepaired []dsbb.PartyID
		wantAdded    []dsbb.PartyID
		wantTrimmed  []dsbb.PartyID
	}{
		{
			name:       "matching set needs no repair",
			cfg:        dsbb.Config{N: 4, F: 2, ByzantineIDs: []dsbb.PartyID{1, 3}},
			wantRepair: false,
		},
		{
			name:         "oversized set trimmed to lowest requested ids",
			cfg:          dsbb.Config{N: 5, F: 1, ByzantineIDs: []dsbb.PartyID{4, 2, 3}},
			wantRepair:   true,
			wantRepaired: []dsbb.PartyID{2},
			wantTrimmed:  []dsbb.PartyID{3, 4},
		},
		{
			name:         "undersized set padded with lowest unselected ids",
			cfg:          dsbb.Config{N: 5, F: 3, ByzantineIDs: []dsbb.PartyID{2}},
			wantRepair:   true,
			wantRepaired: []dsbb.PartyID{0, 1, 2},
			wantAdded:    []dsbb.PartyID{0, 1},
		},
		{
			name:         "empty set padded from the sender up",
			cfg:          dsbb.Config{N: 2, F: 1},
			wantRepair:   true,
			wantRepaired: []dsbb.PartyID{0},
			wantAdded:    []dsbb.PartyID{0},
		},
		{
			name:         "duplicate ids are deduplicated and reported",
			cfg:          dsbb.Config{N: 3, F: 1, ByzantineIDs: []dsbb.PartyID{1, 1}},
			wantRepair:   true,
			wantRepaired: []dsbb.PartyID{1},
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			engine, err := dsbb.NewEngine(test.cfg)
			require.NoError(t, err)
			repair := engine.ConfigRepair()
			if !test.wantRepair {
				require.Nil(t, repair)
				return
			}
			require.NotNil(t, repair)
			require.Equal(t, test.cfg.ByzantineIDs, repair.Requested)
			require.Equal(t, test.wantRepaired, repair.Repaired)
			require.Equal(t, test.wantAdded, repair.Added)
			require.Equal(t, test.wantTrimmed, repair.Trimmed)
			require.Equal(t, test.wantRepaired, engine.Snapshot().Byzantine)
		})
	}
}

func TestEngine_ValidityWithHonestSender(t *testing.T) {
	t.Parallel()
	engine, err := dsbb.NewEngine(dsbb.Config{
		N:            3,
		F:            1,
		SenderValue:  7,
		ByzantineIDs: []dsbb.PartyID{1},
	})
	require.NoError(t, err)

	decisions := runToCompletion(t, engine)
	require.Equal(t, dsbb.Decide(7), decisions[0])
	require.Equal(t, dsbb.Decide(7), decisions[2])

	report, err := dsbb.Verify(engine.Snapshot())
	require.NoError(t, err)
	require.Equal(t, dsbb.StatusSatisfied, report.Termination.Status)
	require.Equal(t, dsbb.StatusSatisfied, report.Agreement.Status)
	require.Equal(t, dsbb.StatusSatisfied, report.Validity.Status)
	require.Equal(t, map[dsbb.Value]int{7: 2}, report.Agreement.Histogram)
	require.Empty(t, report.Validity.Mismatching)
}

func TestEngine_ByzantineSenderEquivocation(t *testing.T) {
	t.Parallel()
	// The sender tells party 1 the value is 3 and parties 2 and 3 that it is
	// 5. Cross-echoes convince every honest party of both values within one
	// round, so all honest parties decide ⊥ together: Agreement holds,
	// Validity is not applicable.
	engine, err := dsbb.NewEngine(dsbb.Config{
		N:            4,
		F:            1,
		SenderValue:  5,
		ByzantineIDs: []dsbb.PartyID{0},
	}, dsbb.WithStrategy(equivocatingSender{overrides: map[dsbb.PartyID]dsbb.Value{1: 3}}))
	require.NoError(t, err)

	summary, err := engine.AdvanceRound()
	require.NoError(t, err)
	require.Equal(t, uint64(1), summary.Round)
	require.Equal(t, map[dsbb.PartyID][]dsbb.Value{
		1: {5},
		2: {3},
		3: {3},
	}, summary.NewlyConvinced)
	// Three honest relays and the equivocating sender's two re-echoes, each
	// fanned out to three recipients.
	require.Equal(t, 15, summary.EchoCount)

	summary, err = engine.AdvanceRound()
	require.NoError(t, err)
	require.Empty(t, summary.NewlyConvinced)
	require.Equal(t, 6, summary.EchoCount)

	decisions, err := engine.Finalize()
	require.NoError(t, err)
	for _, id := range []dsbb.PartyID{1, 2, 3} {
		require.True(t, decisions[id].IsBottom(), "party %d", id)
	}

	snap := engine.Snapshot()
	for _, id := range []dsbb.PartyID{1, 2, 3} {
		require.Equal(t, []dsbb.Value{3, 5}, snap.Parties[id].ConvincedValues())
	}

	report, err := dsbb.Verify(snap)
	require.NoError(t, err)
	require.Equal(t, dsbb.StatusSatisfied, report.Agreement.Status)
	require.Equal(t, 3, report.Agreement.Bottoms)
	require.Empty(t, report.Agreement.Histogram)
	require.Equal(t, dsbb.StatusNotApplicable, report.Validity.Status)
}

func TestEngine_TwoPartyEdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("byzantine non-sender leaves a deciding singleton", func(t *testing.T) {
		engine, err := dsbb.NewEngine(dsbb.Config{
			N:            2,
			F:            1,
			SenderValue:  5,
			ByzantineIDs: []dsbb.PartyID{1},
		})
		require.NoError(t, err)
		decisions := runToCompletion(t, engine)
		require.Equal(t, dsbb.Decide(5), decisions[0])

		report, err := dsbb.Verify(engine.Snapshot())
		require.NoError(t, err)
		require.Equal(t, dsbb.StatusSatisfied, report.Agreement.Status)
		require.Equal(t, dsbb.StatusSatisfied, report.Validity.Status)
	})

	t.Run("padded byzantine sender leaves honest singleton", func(t *testing.T) {
		engine, err := dsbb.NewEngine(dsbb.Config{N: 2, F: 1, SenderValue: 5})
		require.NoError(t, err)
		require.NotNil(t, engine.ConfigRepair())

		runToCompletion(t, engine)
		report, err := dsbb.Verify(engine.Snapshot())
		require.NoError(t, err)
		require.Equal(t, dsbb.StatusSatisfied, report.Termination.Status)
		require.Equal(t, dsbb.StatusSatisfied, report.Agreement.Status)
		require.Equal(t, dsbb.StatusNotApplicable, report.Validity.Status)
	})
}

func TestEngine_RoundSequencing(t *testing.T) {
	t.Parallel()
	engine, err := dsbb.NewEngine(dsbb.Config{
		N:            4,
		F:            2,
		SenderValue:  1,
		ByzantineIDs: []dsbb.PartyID{1, 2},
	})
	require.NoError(t, err)

	// Decisions are unavailable until round f+1 completes.
	for round := uint64(1); round <= 3; round++ {
		_, err := engine.Finalize()
		require.ErrorIs(t, err, dsbb.ErrNotTerminated)
		require.Equal(t, round, engine.Round())
		_, err = engine.AdvanceRound()
		require.NoError(t, err)
	}

	// Terminated: no further rounds, and Finalize is idempotent.
	_, err = engine.AdvanceRound()
	require.ErrorIs(t, err, dsbb.ErrOutOfSequence)
	first, err := engine.Finalize()
	require.NoError(t, err)
	second, err := engine.Finalize()
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 4)
}

func TestEngine_ConvictionInvariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		cfg      dsbb.Config
		strategy dsbb.Strategy
	}{
		{
			name: "honest sender with byzantine minority",
			cfg:  dsbb.Config{N: 5, F: 2, SenderValue: 9, ByzantineIDs: []dsbb.PartyID{2, 4}},
		},
		{
			name:     "equivocating byzantine sender",
			cfg:      dsbb.Config{N: 4, F: 1, SenderValue: 5, ByzantineIDs: []dsbb.PartyID{0}},
			strategy: equivocatingSender{overrides: map[dsbb.PartyID]dsbb.Value{1: 3}},
		},
		{
			name: "default byzantine sender",
			cfg:  dsbb.Config{N: 4, F: 1, SenderValue: 5, ByzantineIDs: []dsbb.PartyID{0}},
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var opts []dsbb.Option
			if test.strategy != nil {
				opts = append(opts, dsbb.WithStrategy(test.strategy))
			}
			engine, err := dsbb.NewEngine(test.cfg, opts...)
			require.NoError(t, err)

			prev := engine.Snapshot()
			for engine.Round() <= uint64(test.cfg.F)+1 {
				_, err := engine.AdvanceRound()
				require.NoError(t, err)
				curr := engine.Snapshot()
				requireConvictionMonotone(t, prev, curr)
				requireSignerBound(t, curr)
				prev = curr
			}
		})
	}
}

// requireConvictionMonotone asserts that no conviction is ever dropped or
// re-stamped with a different round.
func requireConvictionMonotone(t *testing.T, prev, curr *dsbb.Snapshot) {
	t.Helper()
	for i, p := range prev.Parties {
		for v, round := range p.Convinced {
			got, ok := curr.Parties[i].Convinced[v]
			require.True(t, ok, "party %d dropped conviction of %s", p.ID, v)
			require.Equal(t, round, got, "party %d re-stamped conviction of %s", p.ID, v)
		}
	}
}

// requireSignerBound asserts that every honest conviction at round t >= 1 is
// justified by an inbox message with a sender-first chain of at least t+1
// unique signers.
func requireSignerBound(t *testing.T, snap *dsbb.Snapshot) {
	t.Helper()
	for _, p := range snap.Parties {
		if p.Byzantine {
			continue
		}
		for v, round := range p.Convinced {
			if round == 0 {
				continue
			}
			justified := false
			for _, m := range p.Inbox {
				if m.Value != v {
					continue
				}
				first, err := m.Chain.FirstSigner()
				if err != nil || first != dsbb.SenderID {
					continue
				}
				if uint64(m.Chain.UniqueSignerCount()) >= round+1 {
					justified = true
					break
				}
			}
			require.True(t, justified, "party %d convinced of %s at round %d without a qualifying chain", p.ID, v, round)
		}
	}
}

func TestEngine_HonestDecisionsAreDeterministic(t *testing.T) {
	t.Parallel()
	cfg := dsbb.Config{N: 4, F: 1, SenderValue: 5, ByzantineIDs: []dsbb.PartyID{0}}
	run := func() dsbb.DecisionTable {
		engine, err := dsbb.NewEngine(cfg)
		require.NoError(t, err)
		return runToCompletion(t, engine)
	}
	require.Equal(t, run(), run())
}

func TestEngine_SnapshotIsDetached(t *testing.T) {
	t.Parallel()
	engine, err := dsbb.NewEngine(dsbb.Config{
		N:            3,
		F:            1,
		SenderValue:  7,
		ByzantineIDs: []dsbb.PartyID{1},
	})
	require.NoError(t, err)

	snap := engine.Snapshot()
	snap.Parties[0].Convinced[42] = 0
	snap.Parties[0].Inbox = nil
	snap.Messages = nil

	fresh := engine.Snapshot()
	require.NotContains(t, fresh.Parties[0].Convinced, dsbb.Value(42))
	require.NotEmpty(t, fresh.Messages)
}

func runToCompletion(t *testing.T, engine *dsbb.Engine) dsbb.DecisionTable {
	t.Helper()
	for {
		if _, err := engine.AdvanceRound(); err != nil {
			require.ErrorIs(t, err, dsbb.ErrOutOfSequence)
			break
		}
	}
	decisions, err := engine.Finalize()
	require.NoError(t, err)
	return decisions
}
