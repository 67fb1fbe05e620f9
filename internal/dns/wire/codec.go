// Package wire encodes outbound DNS queries and decodes inbound DNS
// responses for A, AAAA, and CNAME records (RFC 1035 §4.1), including
// domain-name compression. It is hand-rolled rather than delegated to a
// third-party DNS message library: this is the "hard part" the spec
// calls out, and the encode/decode functions here are pure — no
// per-goroutine scratch state, no shared mutable buffers.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/haukened/adnsq/internal/dns/domain"
)

// maxMessageSize is the classic UDP DNS message size limit (spec §4.1).
const maxMessageSize = 512

// headerSize is the fixed 12-byte DNS message header (RFC 1035 §4.1.1).
const headerSize = 12

// flagsQueryRD is the 16-bit flags field for an outbound standard query
// with the Recursion Desired bit set (opcode=QUERY, RD=1, everything
// else zero).
const flagsQueryRD = 0x0100

// EncodeQuery serializes a single-question DNS query for name/qtype.
// The 2-byte ID field is left zero; the caller (the Dispatcher) writes
// the drawn transaction ID into the returned buffer with SetID once it
// has confirmed the ID is not already registered (spec §6.1 and §6.5).
func EncodeQuery(name string, qtype domain.RRType) ([]byte, error) {
	if name == "" {
		return nil, errors.New("query name must not be empty")
	}
	if len(name) > 253 {
		return nil, fmt.Errorf("query name %q exceeds 253 octets", name)
	}
	if !qtype.IsQueryable() {
		return nil, fmt.Errorf("unsupported query type: %s", qtype)
	}

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint16(0))            // ID placeholder
	_ = binary.Write(&buf, binary.BigEndian, uint16(flagsQueryRD)) // Flags: RD=1
	_ = binary.Write(&buf, binary.BigEndian, uint16(1))            // QDCOUNT
	_ = binary.Write(&buf, binary.BigEndian, uint16(0))            // ANCOUNT
	_ = binary.Write(&buf, binary.BigEndian, uint16(0))            // NSCOUNT
	_ = binary.Write(&buf, binary.BigEndian, uint16(0))            // ARCOUNT

	qname, err := encodeName(name)
	if err != nil {
		return nil, err
	}
	buf.Write(qname)
	_ = binary.Write(&buf, binary.BigEndian, uint16(qtype))
	_ = binary.Write(&buf, binary.BigEndian, uint16(domain.RRClassIN))

	if buf.Len() > maxMessageSize {
		return nil, fmt.Errorf("encoded query of %d bytes exceeds %d byte UDP limit", buf.Len(), maxMessageSize)
	}
	return buf.Bytes(), nil
}

// SetID overwrites the 2-byte ID field of an encoded message in place.
func SetID(msg []byte, id uint16) error {
	if len(msg) < 2 {
		return errors.New("message too short to carry an ID")
	}
	binary.BigEndian.PutUint16(msg[0:2], id)
	return nil
}

// PeekID reads the 2-byte transaction ID from a raw datagram without
// fully decoding it, so the receive loop can correlate before paying
// for answer-section parsing.
func PeekID(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, errors.New("datagram too short to contain an ID")
	}
	return binary.BigEndian.Uint16(data[0:2]), nil
}

// encodeName encodes a domain name into wire format: length-prefixed
// labels terminated by a zero octet. No compression is ever used on
// encode — the outbound message has exactly one name to write, so
// there is nothing to point back to.
func encodeName(name string) ([]byte, error) {
	name = strings.TrimSuffix(name, ".")
	var buf bytes.Buffer
	if name != "" {
		for _, label := range strings.Split(name, ".") {
			if len(label) == 0 {
				continue
			}
			if len(label) > 63 {
				return nil, fmt.Errorf("label %q exceeds 63 octets", label)
			}
			buf.WriteByte(byte(len(label)))
			buf.WriteString(label)
		}
	}
	buf.WriteByte(0)
	return buf.Bytes(), nil
}

// decodeName decodes a domain name starting at offset within the full
// message data, following compression pointers (RFC 1035 §4.1.4).
// It returns the decoded name and the offset immediately following the
// name *as it appears at the call site* (i.e. past a pointer's 2 bytes,
// not past whatever the pointer jumps to).
//
// Pointer loops and out-of-range offsets are rejected: every pointer
// jump must land strictly before the start of the name segment the
// pointer belongs to (the starting offset, or the previous jump's
// target), which makes the sequence of jump targets strictly decreasing
// and therefore finite —
// an infinite or circular pointer chain cannot satisfy that and is
// reported as an error instead of hanging the parser.
func decodeName(data []byte, offset int) (string, int, error) {
	var labels []string
	startOffset := offset
	jumped := false
	returnOffset := offset

	for {
		if offset >= len(data) {
			return "", 0, errors.New("name offset out of bounds")
		}
		length := int(data[offset])

		if length == 0 {
			offset++
			if !jumped {
				returnOffset = offset
			}
			break
		}

		if length&0xC0 == 0xC0 {
			if offset+1 >= len(data) {
				return "", 0, errors.New("compression pointer out of bounds")
			}
			ptr := int(binary.BigEndian.Uint16(data[offset:offset+2]) & 0x3FFF)
			if ptr >= startOffset {
				return "", 0, errors.New("compression pointer does not point strictly backward (loop)")
			}
			if !jumped {
				returnOffset = offset + 2
			}
			jumped = true
			startOffset = ptr
			offset = ptr
			continue
		}

		offset++
		if offset+length > len(data) {
			return "", 0, errors.New("label length out of bounds")
		}
		labels = append(labels, string(data[offset:offset+length]))
		offset += length
	}

	return strings.Join(labels, "."), returnOffset, nil
}

// DecodedResponse is the result of decoding a DNS response datagram.
type DecodedResponse struct {
	ID        uint16
	RCode     domain.RCode
	Truncated bool
	Authority bool
	Addrs     []domain.AddressRecord
	CNAMEs    []domain.CNAMERecord
}

// DecodeResponse parses a raw DNS response datagram, extracting the
// header fields and walking the answer section for A, AAAA, and CNAME
// records (spec §4.1). Other record types are skipped using their
// RDLENGTH so parsing stays in sync, then discarded. Only a header or
// question-section decode error is fatal to the whole datagram: an
// answer record that fails to decode (a bad compression pointer, an
// unexpected RDLENGTH, an unparseable CNAME target) is skipped, and
// every answer already collected is still returned with a nil error.
func DecodeResponse(data []byte) (DecodedResponse, error) {
	if len(data) < headerSize {
		return DecodedResponse{}, errors.New("response shorter than DNS header")
	}

	id := binary.BigEndian.Uint16(data[0:2])
	flags := binary.BigEndian.Uint16(data[2:4])
	aa := flags&0x0400 != 0
	tc := flags&0x0200 != 0
	rcode := domain.RCode(flags & 0x000F)

	qdCount := binary.BigEndian.Uint16(data[4:6])
	anCount := binary.BigEndian.Uint16(data[6:8])

	offset := headerSize
	for i := 0; i < int(qdCount); i++ {
		_, next, err := decodeName(data, offset)
		if err != nil {
			return DecodedResponse{}, fmt.Errorf("question %d: %w", i, err)
		}
		offset = next + 4 // QTYPE + QCLASS
		if offset > len(data) {
			return DecodedResponse{}, errors.New("truncated question section")
		}
	}

	resp := DecodedResponse{ID: id, RCode: rcode, Truncated: tc, Authority: aa}

	for i := 0; i < int(anCount); i++ {
		name, rrtype, _, rdata, next, err := decodeRR(data, offset)
		if err != nil {
			// decodeRR failed before it could report where this record
			// ends, so there is no valid offset to resume scanning from;
			// stop walking the answer section but keep everything already
			// collected (spec §4.1: record-level errors never discard
			// prior answers or fail the query).
			break
		}
		offset = next

		switch domain.RRType(rrtype) {
		case domain.RRTypeA:
			if len(rdata) != 4 {
				continue
			}
			addr, ok := netipAddrFromV4(rdata)
			if !ok {
				continue
			}
			resp.Addrs = append(resp.Addrs, domain.AddressRecord{Owner: name, Addr: addr})
		case domain.RRTypeAAAA:
			if len(rdata) != 16 {
				continue
			}
			addr, ok := netipAddrFromV6(rdata)
			if !ok {
				continue
			}
			resp.Addrs = append(resp.Addrs, domain.AddressRecord{Owner: name, Addr: addr})
		case domain.RRTypeCNAME:
			canonical, _, err := decodeName(data, next-len(rdata))
			if err != nil {
				continue
			}
			resp.CNAMEs = append(resp.CNAMEs, domain.CNAMERecord{Owner: name, Canonical: canonical})
		default:
			// ignored record type: already skipped via RDLENGTH above.
		}
	}

	return resp, nil
}

// decodeRR parses one resource record starting at offset and returns its
// owner name, type, class, raw RDATA, and the offset immediately
// following it.
func decodeRR(data []byte, offset int) (name string, rrtype, class uint16, rdata []byte, next int, err error) {
	name, offset, err = decodeName(data, offset)
	if err != nil {
		return "", 0, 0, nil, 0, fmt.Errorf("owner name: %w", err)
	}
	if offset+10 > len(data) {
		return "", 0, 0, nil, 0, errors.New("truncated record fixed fields")
	}
	rrtype = binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	class = binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	offset += 4 // TTL, ignored: this client never caches answers
	rdLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	if offset+int(rdLen) > len(data) {
		return "", 0, 0, nil, 0, errors.New("truncated RDATA")
	}
	rdata = data[offset : offset+int(rdLen)]
	offset += int(rdLen)
	return name, rrtype, class, rdata, offset, nil
}
