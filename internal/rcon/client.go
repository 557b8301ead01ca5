// Package rcon is a Source RCON client used to drive the game server console.
// See https://developer.valvesoftware.com/wiki/Source_RCON_Protocol
package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Common errors
var (
	ErrAuthentication  = errors.New("rcon authentication unsuccessful")
	ErrMalformedPacket = errors.New("malformed rcon packet")
	ErrPacketTooLarge  = errors.New("rcon payload exceeded maximum size")
	ErrClosed          = errors.New("rcon client closed")
)

// Options configure a Client.
type Options struct {
	Logger   zerolog.Logger
	Address  string
	Password string
	Timeout  time.Duration
}

// Client keeps one authenticated connection and serializes commands over it.
// A broken connection is dropped and redialed on the next command.
type Client struct {
	conn     net.Conn
	dial     func(ctx context.Context) (net.Conn, error)
	log      zerolog.Logger
	password string
	timeout  time.Duration
	mu       sync.Mutex
	nextID   int32
	closed   bool
}

// New returns a client for addr. No connection is made until the first command.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	dialer := &net.Dialer{Timeout: opts.Timeout}

	return &Client{
		log:      opts.Logger,
		password: opts.Password,
		timeout:  opts.Timeout,
		dial: func(ctx context.Context) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", opts.Address)
		},
	}
}

// Exec runs a console command and returns the trimmed response body.
func (c *Client) Exec(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}

	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return "", err
		}
	}

	resp, err := c.roundTrip(ctx, &packet{id: c.id(), kind: typeExecCommand, body: []byte(command)})
	if err != nil {
		c.drop()
		return "", err
	}

	return strings.TrimSpace(string(resp.body)), nil
}

// Close closes the current connection. Further commands fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil

	return err
}

func (c *Client) connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("rcon dial: %w", err)
	}
	c.conn = conn

	if err := c.authenticate(ctx); err != nil {
		c.drop()
		return err
	}

	c.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("rcon connected")

	return nil
}

// authenticate sends the password. Servers may emit an empty response
// packet before the auth response, which is skipped.
func (c *Client) authenticate(ctx context.Context) error {
	req := &packet{id: c.id(), kind: typeAuth, body: []byte(c.password)}

	resp, err := c.roundTrip(ctx, req)
	for err == nil && resp.kind == typeResponse && resp.id != packetIDBadAuth {
		resp, err = readPacket(c.conn)
	}
	if err != nil {
		return err
	}

	if resp.id == packetIDBadAuth || resp.kind != typeAuthResponse {
		return ErrAuthentication
	}

	return nil
}

func (c *Client) roundTrip(ctx context.Context, req *packet) (*packet, error) {
	raw, err := req.marshal()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)

	if _, err := c.conn.Write(raw); err != nil {
		return nil, fmt.Errorf("rcon write: %w", err)
	}

	resp, err := readPacket(c.conn)
	if err != nil {
		return nil, err
	}
	if resp.id == packetIDBadAuth {
		return nil, ErrAuthentication
	}

	return resp, nil
}

func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) id() int32 {
	c.nextID++
	if c.nextID <= 0 {
		c.nextID = 1
	}

	return c.nextID
}
