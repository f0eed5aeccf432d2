package vme

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// BusError is a failed register transaction. The message is whatever the
// bridge or transport reported, passed through unchanged.
type BusError struct {
	Op      string
	Address uint32
	Msg     string
}

func (e *BusError) Error() string {
	return fmt.Sprintf("vme %s 0x%08x: %s", e.Op, e.Address, e.Msg)
}

// Client talks to an Ethernet-VME bridge. A single mutex serializes every
// round trip: the backplane has one bus master, so transactions must not
// interleave regardless of which register they target.
type Client struct {
	address       string
	conn          net.Conn
	mu            sync.Mutex
	transactionID uint16
	timeout       time.Duration
	connected     bool
}

func NewClient(address string, timeout time.Duration) *Client {
	return &Client{
		address: address,
		timeout: timeout,
	}
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	conn, err := net.DialTimeout("tcp", c.address, c.timeout)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	c.conn = conn
	c.connected = true

	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	err := c.conn.Close()
	c.connected = false
	c.conn = nil

	return err
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// roundTrip sends a request and waits for the matching response.
func (c *Client) roundTrip(ctx context.Context, request *Frame) (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, fmt.Errorf("not connected")
	}

	c.transactionID++
	request.TransactionID = c.transactionID

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)

	if _, err := c.conn.Write(request.EncodeRequest()); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	c.conn.SetReadDeadline(deadline)

	buf := make([]byte, responseSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}

	response, err := DecodeResponse(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	if response.TransactionID != request.TransactionID {
		return nil, fmt.Errorf("transaction ID mismatch: expected %d, got %d",
			request.TransactionID, response.TransactionID)
	}

	return response, nil
}

// ReadA16D32 reads the 32-bit register at base+addr.
func (c *Client) ReadA16D32(ctx context.Context, base, addr uint32) (uint32, error) {
	target := base + addr

	response, err := c.roundTrip(ctx, ReadRequest(0, target))
	if err != nil {
		return 0, &BusError{Op: "read", Address: target, Msg: err.Error()}
	}
	if response.Status != StatusOK {
		return 0, &BusError{Op: "read", Address: target, Msg: statusText(response.Status)}
	}

	return response.Data, nil
}

// WriteA16D32 writes value to the 32-bit register at base+addr.
func (c *Client) WriteA16D32(ctx context.Context, base, addr uint32, value uint32) error {
	target := base + addr

	response, err := c.roundTrip(ctx, WriteRequest(0, target, value))
	if err != nil {
		return &BusError{Op: "write", Address: target, Msg: err.Error()}
	}
	if response.Status != StatusOK {
		return &BusError{Op: "write", Address: target, Msg: statusText(response.Status)}
	}

	return nil
}
