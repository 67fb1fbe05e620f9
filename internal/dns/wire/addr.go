package wire

import "net/netip"

// netipAddrFromV4 builds a netip.Addr from a 4-byte A record RDATA.
func netipAddrFromV4(b []byte) (netip.Addr, bool) {
	if len(b) != 4 {
		return netip.Addr{}, false
	}
	return netip.AddrFrom4([4]byte{b[0], b[1], b[2], b[3]}), true
}

// netipAddrFromV6 builds a netip.Addr from a 16-byte AAAA record RDATA.
func netipAddrFromV6(b []byte) (netip.Addr, bool) {
	if len(b) != 16 {
		return netip.Addr{}, false
	}
	var arr [16]byte
	copy(arr[:], b)
	return netip.AddrFrom16(arr), true
}
