package server

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/calebmartin/netchess-backend/internal/protocol"
)

const writeTimeout = 10 * time.Second

// tcpConn adapts a raw TCP connection to the Conn interface. A mutex
// serializes writes so broadcasts from other handlers never interleave frames;
// reads stay single-owner with the connection's handler goroutine.
type tcpConn struct {
	nc net.Conn
	r  *bufio.Reader

	wmu sync.Mutex
}

func newTCPConn(nc net.Conn) *tcpConn {
	return &tcpConn{nc: nc, r: bufio.NewReader(nc)}
}

func (c *tcpConn) Send(msgType string, data any) error {
	frame, err := protocol.Encode(msgType, data)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.nc.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = c.nc.Write(frame)
	return err
}

func (c *tcpConn) Close() error { return c.nc.Close() }

// recv reads one frame; it runs only on the handler goroutine.
func (c *tcpConn) recv() (protocol.Envelope, error) {
	return protocol.Read(c.r)
}
