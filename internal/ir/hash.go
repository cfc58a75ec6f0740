package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainStatement = "luma/statement/v" + IRVersion
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + part + 0x00 + part ...)
// The null byte separator prevents boundary ambiguity between parts.
func hashWithDomain(domain string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// StatementHash computes the identity of a statement from the terms of its
// clauses and its owner id. Text is NFC normalized first so visually equal
// statements typed on different keyboards collapse to one identity.
//
// Options and optional sub-clauses do not participate:
// "(1) is red with priority (10)" and "(1) is red with priority (20)" share
// a hash, as do "(1) is saving [for (5) seconds]" and "(1) is saving".
func StatementHash(owner int, clauses []Clause) string {
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = c.TermString()
	}
	body := norm.NFC.String(strings.Join(parts, ClauseSeparator))
	return hashWithDomain(DomainStatement, body, strconv.Itoa(owner))
}

// CombinationKey identifies one joined combination of facts for a rule: the
// tuple of each participating fact hash, in clause order.
// Fact hashes are fixed-width hex, so joining them is unambiguous.
func CombinationKey(factHashes []string) string {
	return strings.Join(factHashes, "|")
}
