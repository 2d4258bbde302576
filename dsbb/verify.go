package dsbb

import "sort"

// Status is the evaluation outcome of one protocol property.
type Status int

const (
	// StatusPending indicates the run has not yet produced enough state to
	// evaluate the property.
	StatusPending Status = iota
	StatusSatisfied
	StatusViolated
	// StatusNotApplicable indicates the property is undefined for this run,
	// e.g. Validity under a Byzantine sender.
	StatusNotApplicable
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSatisfied:
		return "satisfied"
	case StatusViolated:
		return "violated"
	case StatusNotApplicable:
		return "not-applicable"
	default:
		return "unknown"
	}
}

// PropertyResult is the evaluation of one property with enough evidence for a
// caller to render or assert on.
type PropertyResult struct {
	Status Status
	// Histogram counts honest parties' non-⊥ decisions by value. Populated
	// for Agreement on a finalized run.
	Histogram map[Value]int
	// Bottoms counts honest ⊥ decisions. Populated alongside Histogram.
	Bottoms int
	// Mismatching lists the honest parties whose decision differs from the
	// sender's broadcast value. Populated for a Validity evaluation.
	Mismatching []PartyID
}

// PropertyReport evaluates the three Byzantine broadcast properties over one
// run.
type PropertyReport struct {
	Termination PropertyResult
	Agreement   PropertyResult
	Validity    PropertyResult
}

// Verify evaluates Termination, Agreement and Validity against a run
// snapshot. It is pure: safe to call at any point during a run and
// re-evaluate as decisions become available. Fails with ErrIncompleteRun if
// the snapshot does not describe a coherent run.
func Verify(snap *Snapshot) (*PropertyReport, error) {
	if snap == nil || len(snap.Parties) == 0 || len(snap.Parties) != snap.N {
		return nil, ErrIncompleteRun
	}

	var report PropertyReport

	// Termination is structural: the engine always finalizes after exactly
	// F+1 rounds, so this is pending until then and satisfied after.
	if snap.Finalized {
		report.Termination.Status = StatusSatisfied
	} else {
		report.Termination.Status = StatusPending
	}

	senderByzantine := snap.Parties[SenderID].Byzantine

	// Agreement: among honest decisions, at most one distinct non-⊥ value.
	// Vacuously satisfied when the honest set is empty or singleton.
	if snap.Finalized {
		histogram := make(map[Value]int)
		bottoms := 0
		for _, p := range snap.Parties {
			if p.Byzantine {
				continue
			}
			if p.Decision.IsBottom() {
				bottoms++
				continue
			}
			histogram[p.Decision.Value]++
		}
		report.Agreement.Histogram = histogram
		report.Agreement.Bottoms = bottoms
		if len(histogram) <= 1 {
			report.Agreement.Status = StatusSatisfied
		} else {
			report.Agreement.Status = StatusViolated
		}
	} else {
		report.Agreement.Status = StatusPending
	}

	// Validity: defined only for an honest sender, and then requires every
	// honest party to decide the sender's broadcast value.
	switch {
	case senderByzantine:
		report.Validity.Status = StatusNotApplicable
	case !snap.Finalized:
		report.Validity.Status = StatusPending
	default:
		var mismatching []PartyID
		want := Decide(snap.SenderValue)
		for _, p := range snap.Parties {
			if p.Byzantine {
				continue
			}
			if !p.Decision.Eq(want) {
				mismatching = append(mismatching, p.ID)
			}
		}
		sort.Slice(mismatching, func(i, j int) bool { return mismatching[i] < mismatching[j] })
		report.Validity.Mismatching = mismatching
		if len(mismatching) == 0 {
			report.Validity.Status = StatusSatisfied
		} else {
			report.Validity.Status = StatusViolated
		}
	}

	return &report, nil
}
