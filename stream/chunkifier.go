package stream

import (
	"errors"
	"io"
	"sync"
)

// Sink opens the n-th destination of a stream, counting from 0.
type Sink func(n int) (io.WriteCloser, error)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("chunkifier closed")

// ChunkifierConfig configures a Chunkifier.
type ChunkifierConfig struct {
	// Splitter builds the splitter of each destination (required).
	Splitter SplitterFactory
	// Sink opens destinations (required).
	Sink Sink
	// AllowEmptyChunks materializes a destination even when a cut
	// leaves it without data. When false, such cuts are folded into
	// the next destination.
	AllowEmptyChunks bool
}

// Chunkifier is a WriteCloser that spreads writes over destinations,
// opening a new one whenever the splitter cuts.
type Chunkifier struct {
	cfg ChunkifierConfig

	mu       sync.Mutex
	opened   int
	dest     io.WriteCloser
	empty    bool // dest has received no bytes
	splitter Splitter
	closed   bool
}

var _ io.WriteCloser = (*Chunkifier)(nil)

// NewChunkifier creates a Chunkifier. Destinations open lazily on the
// first write.
func NewChunkifier(cfg ChunkifierConfig) (*Chunkifier, error) {
	if cfg.Splitter == nil {
		return nil, errors.New("chunkifier requires a splitter factory")
	}
	if cfg.Sink == nil {
		return nil, errors.New("chunkifier requires a sink")
	}
	return &Chunkifier{cfg: cfg}, nil
}

// Write implements io.Writer. An empty write still reaches the current
// destination, opening it if needed.
func (c *Chunkifier) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}

	if len(p) == 0 {
		dest, err := c.current()
		if err != nil {
			return 0, err
		}
		return dest.Write(p)
	}

	data := p
	for len(data) > 0 {
		if c.splitter == nil {
			c.splitter = c.cfg.Splitter()
		}
		head, tail, split := c.splitter(data)

		if !split {
			if len(head) == 0 && c.dest == nil {
				// everything left was dropped; keep the next destination closed
				return len(p), nil
			}
			if err := c.writeHead(head); err != nil {
				return len(p) - len(data), err
			}
			return len(p), nil
		}

		data = tail
		if len(head) == 0 && !c.cfg.AllowEmptyChunks && (c.dest == nil || c.empty) {
			// nothing to keep here: the next piece goes to this same
			// destination under a fresh budget
			c.splitter = nil
			continue
		}
		if err := c.writeHead(head); err != nil {
			return len(p) - len(data), err
		}
		if err := c.rotate(); err != nil {
			return len(p) - len(data), err
		}
	}
	return len(p), nil
}

func (c *Chunkifier) writeHead(head []byte) error {
	dest, err := c.current()
	if err != nil {
		return err
	}
	if len(head) == 0 {
		return nil
	}
	c.empty = false
	_, err = dest.Write(head)
	return err
}

// current returns the open destination, opening the next one if needed.
func (c *Chunkifier) current() (io.WriteCloser, error) {
	if c.dest != nil {
		return c.dest, nil
	}
	dest, err := c.cfg.Sink(c.opened)
	if err != nil {
		return nil, err
	}
	c.opened++
	c.dest = dest
	c.empty = true
	return dest, nil
}

// rotate closes the current destination. The next write opens a new
// one with a fresh splitter.
func (c *Chunkifier) rotate() error {
	dest := c.dest
	c.dest = nil
	c.splitter = nil
	if dest == nil {
		return nil
	}
	return dest.Close()
}

// Opened returns how many destinations have been opened.
func (c *Chunkifier) Opened() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Close closes the current destination. Further writes fail.
func (c *Chunkifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rotate()
}
