package transport

import (
	"fmt"
	"net"

	"gyrowheel/internal/frame"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type (
	resolveFunc func(network, address string) (*net.UDPAddr, error)
	dialFunc    func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)
)

func dialUDP(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
	c, err := net.DialUDP(network, laddr, raddr)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UDP sends each report as one framed datagram to a fixed destination.
// Datagrams are connectionless, so a peer is always assumed present.
type UDP struct {
	dest    string
	conn    udpConn
	pending pending
}

func NewUDP(dest string) (*UDP, error) {
	return newUDP(dest, net.ResolveUDPAddr, dialUDP)
}

func newUDP(dest string, resolve resolveFunc, dial dialFunc) (*UDP, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", dest, err)
	}
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial udp %s: %w", dest, err)
	}
	return &UDP{dest: dest, conn: conn}, nil
}

func (u *UDP) SetReport(b []byte) { u.pending.set(b) }

func (u *UDP) Notify() error {
	msg := u.pending.message()
	if msg == nil {
		return nil
	}
	if u.conn == nil {
		return u.pending.record(ErrClosed)
	}
	if _, err := u.conn.Write(frame.Frame(msg)); err != nil {
		return u.pending.record(fmt.Errorf("transport: udp write: %w", err))
	}
	return u.pending.record(nil)
}

func (u *UDP) PeerConnected() bool { return u.conn != nil }

func (u *UDP) Stats() Stats {
	s := u.pending.stats("udp")
	s.Connected = u.PeerConnected()
	if s.Connected {
		s.Peers = 1
	}
	return s
}

func (u *UDP) Close() error {
	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	return err
}
