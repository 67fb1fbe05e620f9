package transport

import (
	"net"
	"net/netip"
	"testing"
	"time"
)

func TestUDPTransport_SendRecvRoundTrip(t *testing.T) {
	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen server: %v", err)
	}
	defer server.Close()
	serverAddr := server.LocalAddr().(*net.UDPAddr).AddrPort()

	client, err := Listen("127.0.0.1:0", serverAddr)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer client.Close()

	if err := client.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	buf := make([]byte, 512)
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, from, err := server.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("server ReadFromUDP: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("server received %q, want %q", buf[:n], "hello")
	}

	if _, err := server.WriteToUDP([]byte("world"), from); err != nil {
		t.Fatalf("server WriteToUDP: %v", err)
	}

	buf2 := make([]byte, 512)
	n2, respFrom, err := client.Recv(buf2)
	if err != nil {
		t.Fatalf("client Recv: %v", err)
	}
	if string(buf2[:n2]) != "world" {
		t.Fatalf("client received %q, want %q", buf2[:n2], "world")
	}
	if respFrom.Addr() != serverAddr.Addr() {
		t.Fatalf("respFrom = %v, want addr %v", respFrom, serverAddr.Addr())
	}
}

func TestUDPTransport_CloseUnblocksRecv(t *testing.T) {
	client, err := Listen("127.0.0.1:0", netip.MustParseAddrPort("127.0.0.1:53"))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 512)
		_, _, err := client.Recv(buf)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Recv to return an error after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Recv to unblock after Close")
	}
}

func TestUDPTransport_LocalAddr(t *testing.T) {
	client, err := Listen("127.0.0.1:0", netip.MustParseAddrPort("127.0.0.1:53"))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer client.Close()
	if client.LocalAddr().Port() == 0 {
		t.Fatal("expected an ephemeral port to be assigned")
	}
}
