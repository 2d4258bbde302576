package dsbb

import (
	"strconv"
	"strings"
)

// SignatureChain is the ordered list of identities that have signed a value,
// insertion order being signing order. Signatures are abstract: carrying an
// identity models that party's unforgeable endorsement. The zero value is an
// empty chain, which never convinces anyone.
//
// Chains are never mutated in place; Extend copy-appends so that a forwarded
// message shares no backing storage with the message that convinced the
// forwarder.
type SignatureChain []PartyID

// NewSignatureChain creates a chain with the given signers in order.
func NewSignatureChain(signers ...PartyID) SignatureChain {
	chain := make(SignatureChain, len(signers))
	copy(chain, signers)
	return chain
}

// Extend returns a new chain with signer appended, or ErrDuplicateSigner if
// the identity already appears: a correct party never signs a value twice,
// and a Byzantine party that wants to re-circulate one must fabricate a
// distinct chain instead.
func (c SignatureChain) Extend(signer PartyID) (SignatureChain, error) {
	if c.Has(signer) {
		return nil, ErrDuplicateSigner
	}
	extended := make(SignatureChain, len(c), len(c)+1)
	copy(extended, c)
	return append(extended, signer), nil
}

// Has checks whether signer appears anywhere in the chain.
func (c SignatureChain) Has(signer PartyID) bool {
	for _, s := range c {
		if s == signer {
			return true
		}
	}
	return false
}

// FirstSigner returns the identity that signed first, or ErrEmptyChain on an
// empty chain.
func (c SignatureChain) FirstSigner() (PartyID, error) {
	if len(c) == 0 {
		return 0, ErrEmptyChain
	}
	return c[0], nil
}

// UniqueSignerCount counts the distinct identities in the chain. For chains
// built through Extend this equals the length, but adversarially fabricated
// chains may repeat identities, and the conviction rule counts distinct
// signers only.
func (c SignatureChain) UniqueSignerCount() int {
	if len(c) < 2 {
		return len(c)
	}
	seen := make(map[PartyID]struct{}, len(c))
	for _, s := range c {
		seen[s] = struct{}{}
	}
	return len(seen)
}

// Eq checks whether two chains carry the same signers in the same order.
func (c SignatureChain) Eq(other SignatureChain) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

func (c SignatureChain) String() string {
	var b strings.Builder
	b.WriteString("[")
	for i, s := range c {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(strconv.FormatUint(uint64(s), 10))
	}
	b.WriteString("]")
	return b.String()
}
