package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/filecoin-project/go-dssim/dsbb"
	"github.com/filecoin-project/go-dssim/sim"
)

func main() {
	iterations := flag.Int("iterations", 1, "number of simulation iterations")
	partyCount := flag.Int("parties", 4, "number of parties, including the sender")
	faultCount := flag.Int("faults", 1, "byzantine fault bound f; the run spans f+1 rounds")
	senderValue := flag.Int64("value", 1, "value broadcast by the sender")
	byzantine := flag.String("byzantine", "", "comma-separated byzantine party ids; repaired to f ids if mismatched")
	seed := flag.Int64("seed", time.Now().UnixMilli(), "random seed for adversarial tie-breaking")
	trace := flag.Bool("trace", false, "print engine trace events")
	flag.Parse()

	byzantineIDs, err := parsePartyIDs(*byzantine)
	if err != nil {
		log.Fatalf("bad -byzantine: %v\n", err)
	}

	for i := 0; i < *iterations; i++ {
		// Increment seed for successive iterations.
		options := []sim.Option{
			sim.WithPartyCount(*partyCount),
			sim.WithFaultCount(*faultCount),
			sim.WithSenderValue(dsbb.Value(*senderValue)),
			sim.WithByzantineIDs(byzantineIDs...),
			sim.WithSeed(*seed + int64(i)),
		}
		if *trace {
			options = append(options, sim.WithTraceToStdout())
		}

		sm, err := sim.NewSimulation(options...)
		if err != nil {
			log.Fatalf("failed to initialize simulation: %v\n", err)
		}
		report, err := sm.Run()
		if err != nil {
			log.Fatalf("simulation failed: %v\n", err)
		}

		fmt.Printf("Iteration %d: run=%s\n", i, sm.Engine.RunID())
		fmt.Print(sm.Describe())
		fmt.Printf("Termination: %s\nAgreement:   %s\nValidity:    %s\n",
			report.Termination.Status, report.Agreement.Status, report.Validity.Status)
		if report.Agreement.Status == dsbb.StatusViolated || report.Validity.Status == dsbb.StatusViolated {
			sm.PrintResults()
			os.Exit(1)
		}
	}
}

func parsePartyIDs(s string) ([]dsbb.PartyID, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]dsbb.PartyID, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, dsbb.PartyID(id))
	}
	return ids, nil
}
