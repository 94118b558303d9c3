// Package transport is the websocket client simulators and agents use to
// reach the relay.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("transport closed")

const (
	writeWait   = 5 * time.Second
	outboxDepth = 16
)

type Options struct {
	// MaxMessageBytes caps one inbound frame; frames carry whole images.
	MaxMessageBytes int64
	Header          http.Header
}

// Client owns one websocket connection. Sends are queued to a single
// writer goroutine; Run drives the read side.
type Client struct {
	conn       *websocket.Conn
	out        chan []byte
	done       chan struct{}
	writerDone chan struct{}
	open       atomic.Bool

	closeOnce sync.Once
	closeErr  error
	log       *logrus.Entry
}

func Dial(ctx context.Context, url string, opts Options, log *logrus.Entry) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, err
	}
	if opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(opts.MaxMessageBytes)
	}
	c := &Client{
		conn:       conn,
		out:        make(chan []byte, outboxDepth),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		log:        log,
	}
	c.open.Store(true)
	go c.writeLoop()
	log.WithField("url", url).Info("connection established")
	return c, nil
}

func (c *Client) IsOpen() bool { return c.open.Load() }

// Send queues one text frame. It fails once the connection is gone.
func (c *Client) Send(data []byte) error {
	if !c.IsOpen() {
		return ErrClosed
	}
	if data == nil {
		data = []byte{}
	}
	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// writeLoop drains the outbox in order. A nil entry is queued by Close and
// ends the loop with a close frame once everything before it is written.
func (c *Client) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case <-c.done:
			return
		case b := <-c.out:
			if b == nil {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.WithError(err).Warn("write failed")
				c.shutdown(err)
				return
			}
		}
	}
}

// Run reads frames until the connection drops or ctx ends, handing each to
// onReceive in order. The returned error is the reason the loop stopped.
func (c *Client) Run(ctx context.Context, onReceive func([]byte)) error {
	stop := context.AfterFunc(ctx, func() { c.shutdown(ctx.Err()) })
	defer stop()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		onReceive(msg)
	}
}

// Close writes every frame queued so far, then closes the connection with
// a normal close frame.
func (c *Client) Close() error {
	if c.IsOpen() {
		select {
		case c.out <- nil:
			select {
			case <-c.writerDone:
			case <-time.After(writeWait):
			}
		case <-c.done:
		}
	}
	c.shutdown(nil)
	return nil
}

func (c *Client) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.closeErr = reason
		c.open.Store(false)
		close(c.done)
		_ = c.conn.Close()
		c.log.WithError(reason).Info("connection closed")
	})
}

// Err reports why the connection closed, nil while open or after Close.
func (c *Client) Err() error {
	if c.IsOpen() {
		return nil
	}
	return c.closeErr
}
