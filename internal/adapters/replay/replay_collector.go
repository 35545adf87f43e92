package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ghalamif/LiveFlow/internal/adapters/livebuffer"
	"github.com/ghalamif/LiveFlow/internal/domain"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

// Config describes a recorded sample file to play back as if it were live.
type Config struct {
	// Path of a live buffer file, or "-" for stdin.
	Path string `yaml:"path"`
	// Speed scales the original spacing between records. Zero or negative
	// plays the file as fast as the consumer accepts samples.
	Speed float64 `yaml:"speed"`
	// Restamp shifts every timestamp so the first record is stamped with the
	// time playback started, keeping old recordings inside buffer retention.
	Restamp bool `yaml:"restamp"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return errors.New("replay path is required")
	}
	return nil
}

// Collector feeds samples decoded from a record stream into the pipeline.
type Collector struct {
	cfg  Config
	open func() (io.ReadCloser, error)
	obs  ports.Observability
	now  func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
	done    chan struct{}
	err     error
}

func NewCollector(cfg Config, obs ports.Observability) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	open := func() (io.ReadCloser, error) {
		if cfg.Path == "-" {
			return io.NopCloser(os.Stdin), nil
		}
		return os.Open(cfg.Path)
	}
	return newCollector(cfg, open, obs), nil
}

// NewReaderCollector plays back records read from r.
func NewReaderCollector(r io.Reader, cfg Config, obs ports.Observability) *Collector {
	return newCollector(cfg, func() (io.ReadCloser, error) { return io.NopCloser(r), nil }, obs)
}

func newCollector(cfg Config, open func() (io.ReadCloser, error), obs ports.Observability) *Collector {
	return &Collector{
		cfg:  cfg,
		open: open,
		obs:  obs,
		now:  time.Now,
		done: make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context, out chan<- domain.Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("replay collector already started")
	}

	src, err := c.open()
	if err != nil {
		return fmt.Errorf("replay open %s: %w", c.cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.started = true

	c.wg.Add(1)
	go c.play(ctx, src, out)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	if errors.Is(c.err, context.Canceled) {
		return nil
	}
	return c.err
}

// Done is closed once every record was delivered or playback was stopped.
func (c *Collector) Done() <-chan struct{} { return c.done }

// Err reports why playback ended. It is only meaningful after Done is closed.
func (c *Collector) Err() error { return c.err }

func (c *Collector) play(ctx context.Context, src io.ReadCloser, out chan<- domain.Sample) {
	defer c.wg.Done()
	defer close(c.done)
	defer src.Close()

	var (
		first, started time.Time
		shift          time.Duration
		line           int
		sent           int
	)

	lines := livebuffer.NewLineReader(src)
	for {
		text, err := lines.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if errors.Is(err, livebuffer.ErrLineTooLong) {
			c.obs.LogError("replay_record_skipped", err, ports.Field{Key: "line", Value: line})
			continue
		}
		if err != nil {
			c.err = fmt.Errorf("replay read: %w", err)
			return
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		s, err := livebuffer.DecodeRecord(text)
		if err != nil {
			c.obs.LogError("replay_record_skipped", err, ports.Field{Key: "line", Value: line})
			continue
		}

		if first.IsZero() {
			first = s.Timestamp
			started = c.now()
			if c.cfg.Restamp {
				shift = started.Sub(first)
			}
		}
		if c.cfg.Speed > 0 {
			offset := time.Duration(float64(s.Timestamp.Sub(first)) / c.cfg.Speed)
			if err := sleepUntil(ctx, started.Add(offset), c.now); err != nil {
				c.err = err
				return
			}
		}
		s.Timestamp = s.Timestamp.Add(shift)

		select {
		case <-ctx.Done():
			c.err = ctx.Err()
			return
		case out <- s:
			sent++
		}
	}
	c.obs.LogInfo("replay_finished",
		ports.Field{Key: "path", Value: c.cfg.Path},
		ports.Field{Key: "samples", Value: sent})
}

func sleepUntil(ctx context.Context, at time.Time, now func() time.Time) error {
	d := at.Sub(now())
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ ports.Collector = (*Collector)(nil)
