package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
)

// ErrNoPeer is returned when writing to a UDP endpoint that has not heard
// from the vehicle yet
var ErrNoPeer = errors.New("no udp peer yet")

// udpEndpoint listens on a local address, the way autopilots and SITL
// expect a ground station to, and replies to whoever sent the last datagram.
type udpEndpoint struct {
	conn *net.UDPConn

	mu   sync.Mutex
	peer *net.UDPAddr
}

func openUDP(ctx context.Context, cfg *Config) (io.ReadWriteCloser, error) {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", cfg.Address)
	if err != nil {
		return nil, err
	}

	return &udpEndpoint{conn: pc.(*net.UDPConn)}, nil
}

func (u *udpEndpoint) Read(b []byte) (int, error) {
	n, addr, err := u.conn.ReadFromUDP(b)
	if addr != nil {
		u.mu.Lock()
		u.peer = addr
		u.mu.Unlock()
	}
	return n, err
}

func (u *udpEndpoint) Write(b []byte) (int, error) {
	u.mu.Lock()
	peer := u.peer
	u.mu.Unlock()

	if peer == nil {
		return 0, ErrNoPeer
	}
	return u.conn.WriteToUDP(b, peer)
}

func (u *udpEndpoint) Close() error {
	return u.conn.Close()
}

// LocalAddr returns the address the endpoint listens on.
func (u *udpEndpoint) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}
