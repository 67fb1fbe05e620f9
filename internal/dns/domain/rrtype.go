package domain

import "fmt"

// RRType represents a DNS resource record type (e.g. A, AAAA, CNAME).
// See IANA DNS Parameters for assigned codes.
type RRType uint16

// DNS Resource Record Type constants.
// Only the types this client can query for (A, AAAA) or must recognize
// while walking an answer section (CNAME) are modeled; any other on-wire
// type is decoded far enough to skip over and then ignored (spec §4.1).
const (
	RRTypeA     RRType = 1  // A - IPv4 address
	RRTypeCNAME RRType = 5  // CNAME - Canonical name
	RRTypeAAAA  RRType = 28 // AAAA - IPv6 address
)

// IsQueryable returns true if the RRType is one this client may submit
// in AsyncQuery (A or AAAA only; see spec §1 Out of scope).
func (t RRType) IsQueryable() bool {
	return t == RRTypeA || t == RRTypeAAAA
}

// String returns the textual representation of the RRType.
// For unknown types, it returns "UNKNOWN(<value>)".
func (t RRType) String() string {
	switch t {
	case RRTypeA:
		return "A"
	case RRTypeCNAME:
		return "CNAME"
	case RRTypeAAAA:
		return "AAAA"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}

// RRTypeFromString converts a record type string to its corresponding RRType value.
// Returns 0 (invalid) for anything other than "A" or "AAAA".
func RRTypeFromString(s string) RRType {
	switch s {
	case "A":
		return RRTypeA
	case "AAAA":
		return RRTypeAAAA
	default:
		return 0
	}
}
