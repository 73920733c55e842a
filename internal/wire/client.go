// Package wire implements the RESP-style framing and the blocking,
// timeout-parameterised socket client the replication core speaks to
// slaves with. Grounded on the teacher's netw.ClientEnd (connection
// ownership, explicit mutex) but built on a raw net.Conn instead of
// net/rpc, since the master-slave binlog stream has no fixed frame size.
package wire

import (
	"bufio"
	"net"
	"sync"
	"time"

	"golang.org/x/xerrors"
)

// MaxFrameBytes bounds a single ReadData call, matching
// Network.createBlockingClient's maxFrameBytes=64MiB from spec.md §6.
const MaxFrameBytes = 64 * 1024 * 1024

// BlockingClient owns one TCP connection end-to-end: it is created once
// a socket is accepted or dialed, and is closed exactly once, by whoever
// currently owns it (the MPov entry on the master side).
type BlockingClient struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

func NewBlockingClient(conn net.Conn) *BlockingClient {
	tuneConn(conn)
	return &BlockingClient{
		conn: conn,
		r:    bufio.NewReaderSize(conn, 64*1024),
	}
}

// NewBlockingClientFromReader builds a client around a connection whose
// first bytes have already been consumed into r (e.g. a command line
// read by the accept-loop dispatcher before it knew which handler should
// own the rest of the socket). Using the caller's reader, rather than
// wrapping conn fresh, avoids losing whatever bufio had already
// prefetched past that line.
func NewBlockingClientFromReader(conn net.Conn, r *bufio.Reader) *BlockingClient {
	tuneConn(conn)
	return &BlockingClient{conn: conn, r: r}
}

func (c *BlockingClient) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *BlockingClient) Close() error {
	return c.conn.Close()
}

// WriteLine writes s followed by "\r\n" within timeout.
func (c *BlockingClient) WriteLine(s string, timeout time.Duration) error {
	return c.WriteData([]byte(s+"\r\n"), timeout)
}

// WriteData writes the raw bytes of b within timeout, with no framing
// added; callers that need a line terminator use WriteLine.
func (c *BlockingClient) WriteData(b []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return xerrors.Errorf("wire: set write deadline: %w", err)
	}
	_, err := c.conn.Write(b)
	if err != nil {
		return xerrors.Errorf("wire: write: %w", err)
	}
	return nil
}

// ReadLine reads one "\r\n"-terminated line within timeout, returning it
// without the terminator.
func (c *BlockingClient) ReadLine(timeout time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", xerrors.Errorf("wire: set read deadline: %w", err)
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", xerrors.Errorf("wire: read line: %w", err)
	}
	return trimCRLF(line), nil
}

// ReadData reads exactly n bytes within timeout. n must not exceed
// MaxFrameBytes.
func (c *BlockingClient) ReadData(n int, timeout time.Duration) ([]byte, error) {
	if n > MaxFrameBytes {
		return nil, xerrors.Errorf("wire: frame of %d bytes exceeds max %d", n, MaxFrameBytes)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, xerrors.Errorf("wire: set read deadline: %w", err)
	}
	buf := make([]byte, n)
	if _, err := readFull(c.r, buf); err != nil {
		return nil, xerrors.Errorf("wire: read data: %w", err)
	}
	return buf, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
