package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrClosed is returned when using a closed [Relay].
	ErrClosed = errors.New("relay: closed")

	// ErrNoResponder means the worker went away before replying.
	ErrNoResponder = errors.New("worker closed the connection without replying")
)

// RoundTripError reports a failure of the relay itself: the worker could
// not be created, or the request or reply could not cross the boundary.
type RoundTripError struct {
	Op  string // "spawn", "send", "receive" or "wait"
	Err error
}

func (e *RoundTripError) Error() string { return "relay: " + e.Op + ": " + e.Err.Error() }

func (e *RoundTripError) Unwrap() error { return e.Err }

// WorkerError is an extraction failure reported by the worker.
type WorkerError struct {
	Message string
}

func (e *WorkerError) Error() string { return e.Message }

// Relay sends extraction requests to a lazily created worker context.
//
// At most one worker exists at a time. Concurrent first callers share a
// single spawn; later callers reuse the live worker. If the worker dies it
// is discarded and the next request spawns a new one. A Relay is safe for
// concurrent use.
type Relay struct {
	spawner Spawner
	log     *logrus.Logger
	newID   func() string

	init singleflight.Group

	mu     sync.Mutex
	conn   *conn
	closed bool
}

// RelayOption configures a [Relay].
type RelayOption func(*Relay)

// WithLogger sets the relay's logger.
func WithLogger(l *logrus.Logger) RelayOption {
	return func(r *Relay) {
		r.log = l
	}
}

// New returns a Relay that creates its worker with s on first use.
func New(s Spawner, opts ...RelayOption) *Relay {
	r := &Relay{
		spawner: s,
		log:     logrus.StandardLogger(),
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Extract sends data to the worker and returns the extracted text. The
// relay owns data once Extract is called.
//
// Relay failures are returned as *[RoundTripError]; failures inside the
// worker are returned as *[WorkerError].
func (r *Relay) Extract(ctx context.Context, data []byte) (string, error) {
	c, err := r.worker(ctx)
	if err != nil {
		return "", err
	}

	req := ExtractRequest{
		ID:      r.newID(),
		Action:  ActionExtractPDFText,
		PDFData: EncodeBytes(data),
	}
	entry := r.log.WithFields(logrus.Fields{"id": req.ID, "bytes": len(data)})
	entry.Debug("relaying extraction request")

	reply, err := c.roundTrip(ctx, req)
	if err != nil {
		entry.WithError(err).Warn("relay round-trip failed; discarding worker")
		return "", err
	}
	if !reply.Success {
		return "", &WorkerError{Message: reply.Error}
	}
	return reply.Text, nil
}

// Close shuts down the worker, if any. Close is idempotent.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.conn != nil {
		err := r.conn.close()
		r.conn = nil
		return err
	}
	return nil
}

// worker returns the live worker connection, creating it if needed.
func (r *Relay) worker(ctx context.Context) (*conn, error) {
	if c, err := r.current(); c != nil || err != nil {
		return c, err
	}

	v, err, shared := r.init.Do("worker", func() (any, error) {
		if c, err := r.current(); c != nil || err != nil {
			return c, err
		}
		rwc, err := r.spawner.Spawn(ctx)
		if err != nil {
			return nil, &RoundTripError{Op: "spawn", Err: err}
		}
		c := newConn(rwc)

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			_ = c.close()
			return nil, ErrClosed
		}
		r.conn = c
		r.log.Info("relay worker started")
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.log.Debug("joined in-flight worker creation")
	}
	return v.(*conn), nil
}

// current returns the live connection, or nil if a worker must be spawned.
func (r *Relay) current() (*conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if r.conn != nil && !r.conn.broken.Load() {
		return r.conn, nil
	}
	return nil, nil
}

// conn is one connection to a worker. Round-trips on it are serialized.
type conn struct {
	rwc    io.ReadWriteCloser
	enc    *json.Encoder
	dec    *json.Decoder
	broken atomic.Bool

	mu sync.Mutex
}

func newConn(rwc io.ReadWriteCloser) *conn {
	return &conn{rwc: rwc, enc: json.NewEncoder(rwc), dec: json.NewDecoder(rwc)}
}

func (c *conn) roundTrip(ctx context.Context, req ExtractRequest) (ExtractReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken.Load() {
		return ExtractReply{}, &RoundTripError{Op: "send", Err: ErrNoResponder}
	}

	type result struct {
		reply ExtractReply
		err   error
	}
	done := make(chan result, 1)
	go func() {
		var res result
		if err := c.enc.Encode(req); err != nil {
			res.err = &RoundTripError{Op: "send", Err: err}
		} else if err := c.dec.Decode(&res.reply); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = ErrNoResponder
			}
			res.err = &RoundTripError{Op: "receive", Err: err}
		}
		done <- res
	}()

	select {
	case res := <-done:
		if res.err == nil && res.reply.ID != req.ID {
			res.err = &RoundTripError{
				Op:  "receive",
				Err: fmt.Errorf("reply id %q does not match request %q", res.reply.ID, req.ID),
			}
		}
		if res.err != nil {
			_ = c.close()
		}
		return res.reply, res.err
	case <-ctx.Done():
		// The worker may still answer later; nobody would read it.
		_ = c.close()
		return ExtractReply{}, &RoundTripError{Op: "wait", Err: ctx.Err()}
	}
}

func (c *conn) close() error {
	if c.broken.Swap(true) {
		return nil
	}
	return c.rwc.Close()
}
