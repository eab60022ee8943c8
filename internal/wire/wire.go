// Package wire reads and writes newline-delimited JSON messages over a
// net.Conn.
//
// Wire format:
//
//	<json>\n
//
// Every line is a single message.
package wire

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"go.klb.dev/clipkeep/internal/message"
)

const (
	// MaxMessageSize is the largest message we will read (64 MiB). A GET of
	// a large screenshot is the biggest thing that crosses the socket.
	MaxMessageSize = 64 * 1024 * 1024

	writeDeadline = 5 * time.Second
)

// Conn wraps a net.Conn with buffered newline-delimited JSON framing.
type Conn struct {
	conn net.Conn
	br   *bufio.Reader
}

// New wraps conn.
func New(conn net.Conn) *Conn {
	return &Conn{
		conn: conn,
		br:   bufio.NewReaderSize(conn, 64*1024),
	}
}

// SetReadDeadline sets or clears the read deadline.
func (c *Conn) SetReadDeadline(d time.Duration) {
	if d == 0 {
		_ = c.conn.SetReadDeadline(time.Time{})
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(d))
	}
}

// SetWriteDeadline sets or clears the write deadline.
func (c *Conn) SetWriteDeadline(d time.Duration) {
	if d == 0 {
		_ = c.conn.SetWriteDeadline(time.Time{})
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(d))
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// WriteMsg serialises msg to JSON and writes it followed by a newline.
func (c *Conn) WriteMsg(msg *message.Message) error {
	raw, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	line := append(raw, '\n')

	c.SetWriteDeadline(writeDeadline)
	_, err = c.conn.Write(line)
	c.SetWriteDeadline(0)
	return err
}

// ReadMsg reads one newline-terminated line and deserialises it into a
// Message.
func (c *Conn) ReadMsg() (*message.Message, error) {
	var line []byte
	for {
		chunk, err := c.br.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxMessageSize {
			return nil, fmt.Errorf("message too large (over %d bytes)", MaxMessageSize)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	// Strip trailing newline
	return message.Decode(line[:len(line)-1])
}

// Call writes req and waits for the response.
func (c *Conn) Call(req *message.Message, timeout time.Duration) (*message.Message, error) {
	if err := c.WriteMsg(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Type, err)
	}
	c.SetReadDeadline(timeout)
	defer c.SetReadDeadline(0)
	resp, err := c.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.Type, err)
	}
	return resp, nil
}
