package dsbb

import "fmt"

// Message is a signed value in transit between two parties during a specific
// round. Messages are immutable once created and consumed exactly once by the
// addressed recipient's inbox. Duplicates are harmless: the conviction rule
// deduplicates by signer identity, not by message.
type Message struct {
	// Value being endorsed by the chain.
	Value Value
	// Chain of signer identities, sender first for any chain that is ever to
	// convince an honest party.
	Chain SignatureChain
	// From is the party that transmitted this copy.
	From PartyID
	// To is the addressed recipient.
	To PartyID
	// Round in which the message was sent.
	Round uint64
}

func (m Message) String() string {
	return fmt.Sprintf("P%d→P%d r%d v=%s chain=%s", m.From, m.To, m.Round, m.Value, m.Chain)
}
