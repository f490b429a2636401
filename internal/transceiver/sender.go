package transceiver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"
)

// Sender writes controller→device datagrams. The UDP implementation is
// used in production; tests substitute a recorder.
type Sender interface {
	Send(ctx context.Context, address, message string) error
	Close() error
}

// udpSender writes from an ephemeral local port to address:port.
type udpSender struct {
	conn    *net.UDPConn
	port    int
	timeout time.Duration
}

func newUDPSender(port int, timeout time.Duration) (*udpSender, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	return &udpSender{conn: conn, port: port, timeout: timeout}, nil
}

func (s *udpSender) Send(ctx context.Context, address, message string) error {
	ip, err := netip.ParseAddr(address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrSendFailed, ctx.Err())
	default:
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrSendFailed, err)
	}

	dst := netip.AddrPortFrom(ip, uint16(s.port)) //nolint:gosec // port validated by config
	if _, err := s.conn.WriteToUDPAddrPort([]byte(message), dst); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

func (s *udpSender) Close() error {
	return s.conn.Close()
}
