package term

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainProblem = "evarconv/problem/v1"
	DomainTerm    = "evarconv/term/v1"
)

// Hash returns a structural 64-bit hash of t. Terms that are Equal hash
// to the same value; binder names do not contribute.
func Hash(t Term) uint64 {
	d := xxhash.New()
	writeTerm(d, t)
	return d.Sum64()
}

// HashList hashes a spine.
func HashList(ts []Term) uint64 {
	d := xxhash.New()
	writeList(d, ts)
	return d.Sum64()
}

func writeInt(d *xxhash.Digest, n int) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	_, _ = d.Write(buf[:])
}

func writeTag(d *xxhash.Digest, tag byte) {
	_, _ = d.Write([]byte{tag})
}

func writeList(d *xxhash.Digest, ts []Term) {
	writeInt(d, len(ts))
	for _, t := range ts {
		writeTerm(d, t)
	}
}

func writeTerm(d *xxhash.Digest, t Term) {
	switch t := t.(type) {
	case Rel:
		writeTag(d, 'r')
		writeInt(d, t.Index)
	case Var:
		writeTag(d, 'v')
		_, _ = d.WriteString(t.Name)
	case Evar:
		writeTag(d, 'e')
		writeInt(d, t.ID)
		writeList(d, t.Args)
	case App:
		head, args := Decompose(t)
		writeTag(d, 'a')
		writeTerm(d, head)
		writeList(d, args)
	case Lambda:
		writeTag(d, 'l')
		writeTerm(d, t.Type)
		writeTerm(d, t.Body)
	case Prod:
		writeTag(d, 'p')
		writeTerm(d, t.Type)
		writeTerm(d, t.Body)
	case LetIn:
		writeTag(d, 'z')
		writeTerm(d, t.Value)
		writeTerm(d, t.Type)
		writeTerm(d, t.Body)
	case Sort:
		writeTag(d, 's')
		writeInt(d, int(t.Kind))
		_, _ = d.WriteString(t.Level)
	case Const:
		writeTag(d, 'c')
		_, _ = d.WriteString(t.Name)
	case Ind:
		writeTag(d, 'i')
		_, _ = d.WriteString(t.Name)
	case Construct:
		writeTag(d, 'k')
		_, _ = d.WriteString(t.Ind)
		writeInt(d, t.Index)
	case Case:
		writeTag(d, 'm')
		_, _ = d.WriteString(t.Ind)
		writeInt(d, t.NParams)
		writeTerm(d, t.Return)
		writeTerm(d, t.Scrutinee)
		writeList(d, t.Branches)
	case Fix:
		writeTag(d, 'f')
		writeInt(d, t.Index)
		writeInt(d, len(t.RecArgs))
		for _, r := range t.RecArgs {
			writeInt(d, r)
		}
		writeList(d, t.Types)
		writeList(d, t.Bodies)
	case CoFix:
		writeTag(d, 'g')
		writeInt(d, t.Index)
		writeList(d, t.Types)
		writeList(d, t.Bodies)
	}
}

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TermID computes a content-addressed id for t.
func TermID(t Term) (string, error) {
	canonical, err := MarshalCanonical(t)
	if err != nil {
		return "", fmt.Errorf("TermID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTerm, canonical), nil
}

// ProblemID computes a content-addressed id for a unification problem.
// The id is stable across runs given the same context, terms and variance.
func ProblemID(ctx Context, left, right Term, variance string) (string, error) {
	ctxJSON, err := marshalContext(ctx)
	if err != nil {
		return "", fmt.Errorf("ProblemID: context: %w", err)
	}
	l, err := MarshalCanonical(left)
	if err != nil {
		return "", fmt.Errorf("ProblemID: left: %w", err)
	}
	r, err := MarshalCanonical(right)
	if err != nil {
		return "", fmt.Errorf("ProblemID: right: %w", err)
	}
	obj := canonicalObject{
		{"context", ctxJSON},
		{"left", l},
		{"right", r},
		{"variance", mustString(variance)},
	}
	return hashWithDomain(DomainProblem, obj.marshal()), nil
}
