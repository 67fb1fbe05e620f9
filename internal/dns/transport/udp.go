// Package transport provides the single shared UDP socket the
// dispatcher sends queries on and receives replies from (spec §6.4).
package transport

import (
	"fmt"
	"net"
	"net/netip"
)

// UDPTransport is a single bound UDP endpoint. Unlike a dialed
// connection, it accepts datagrams from any source — the dispatcher
// performs its own peer verification against the configured
// nameserver once a datagram arrives (spec §6.6).
type UDPTransport struct {
	conn       *net.UDPConn
	nameserver netip.AddrPort
}

// Listen opens a UDP socket bound to localAddr (use ":0" for an
// ephemeral port) that will be used to talk to nameserver.
func Listen(localAddr string, nameserver netip.AddrPort) (*UDPTransport, error) {
	addr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve local address %q: %w", localAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp on %q: %w", localAddr, err)
	}
	return &UDPTransport{conn: conn, nameserver: nameserver}, nil
}

// Nameserver returns the configured upstream endpoint.
func (t *UDPTransport) Nameserver() netip.AddrPort {
	return t.nameserver
}

// Send writes b to the configured nameserver.
func (t *UDPTransport) Send(b []byte) error {
	_, err := t.conn.WriteToUDPAddrPort(b, t.nameserver)
	if err != nil {
		return fmt.Errorf("send to %v: %w", t.nameserver, err)
	}
	return nil
}

// Recv blocks until a datagram arrives, returning the bytes read into
// buf and the sender's address. A closed transport unblocks any
// pending Recv with a wrapped net.ErrClosed, which the receive loop
// treats as its shutdown signal rather than an error worth logging.
func (t *UDPTransport) Recv(buf []byte) (int, netip.AddrPort, error) {
	n, from, err := t.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return n, from, nil
}

// Close closes the underlying socket.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

// LocalAddr returns the bound local address, mainly useful in tests
// that need to know the ephemeral port a ":0" listen picked.
func (t *UDPTransport) LocalAddr() netip.AddrPort {
	return t.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}
