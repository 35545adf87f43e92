package livebuffer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ghalamif/LiveFlow/internal/domain"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

const (
	DefaultRetention    = time.Hour
	DefaultSaveInterval = 5 * time.Minute

	subdir = "live_buffer"
)

type Config struct {
	// Dir is the cache directory; files go to Dir/live_buffer/<station>.dat.
	Dir          string
	Retention    time.Duration
	SaveInterval time.Duration
}

// FileBuffer keeps the most recent raw samples of one station in memory and
// mirrors them to a tab separated file so they survive restarts. It is owned
// by a single goroutine: the one running its scheduler's callbacks.
type FileBuffer struct {
	dir          string
	retention    time.Duration
	saveInterval time.Duration
	sched        ports.Scheduler
	obs          ports.Observability

	stationCode string
	buffer      []domain.Sample
	dirty       bool
	// late is set when a sample older than the file's newest record was
	// inserted; appending cannot place it, so the next save rewrites.
	late bool

	lastFileWrite time.Time // newest sample timestamp on disk
	lastSave      time.Time
	lastRewrite   time.Time

	check  ports.TimerHandle
	closed bool
}

func New(cfg Config, sched ports.Scheduler, obs ports.Observability) *FileBuffer {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = DefaultSaveInterval
	}
	b := &FileBuffer{
		dir:          cfg.Dir,
		retention:    cfg.Retention,
		saveInterval: cfg.SaveInterval,
		sched:        sched,
		obs:          obs,
	}
	b.scheduleCheck()
	return b
}

// ConnectStation saves the current station's buffer and switches to code,
// loading whatever was persisted for it.
func (b *FileBuffer) ConnectStation(code string) {
	b.saveLogged()

	if code == b.stationCode && len(b.buffer) > 0 {
		// In memory state is already a superset of the file.
		b.trim()
		return
	}

	b.buffer = nil
	b.dirty = false
	b.late = false
	b.lastFileWrite = time.Time{}
	b.lastSave = time.Time{}
	b.lastRewrite = time.Time{}
	b.stationCode = code
	b.load()
}

// LiveData adds a raw sample, drops expired entries and saves when the last
// save is older than the save interval.
func (b *FileBuffer) LiveData(s domain.Sample) {
	if s.Synthetic {
		return
	}

	idx := sort.Search(len(b.buffer), func(i int) bool {
		return b.buffer[i].Timestamp.After(s.Timestamp)
	})
	b.buffer = append(b.buffer, domain.Sample{})
	copy(b.buffer[idx+1:], b.buffer[idx:])
	b.buffer[idx] = s
	b.dirty = true
	if !b.lastFileWrite.IsZero() && !s.Timestamp.After(b.lastFileWrite) {
		b.late = true
	}

	b.trim()

	now := b.sched.Now()
	if b.lastSave.IsZero() || now.Sub(b.lastSave) > b.saveInterval {
		b.saveLogged()
	}
}

// Data returns a copy of the buffer, oldest first.
func (b *FileBuffer) Data() []domain.Sample {
	out := make([]domain.Sample, len(b.buffer))
	copy(out, b.buffer)
	return out
}

// Since returns the buffered samples newer than t, oldest first.
func (b *FileBuffer) Since(t time.Time) []domain.Sample {
	idx := sort.Search(len(b.buffer), func(i int) bool {
		return b.buffer[i].Timestamp.After(t)
	})
	out := make([]domain.Sample, len(b.buffer)-idx)
	copy(out, b.buffer[idx:])
	return out
}

// Flush saves immediately.
func (b *FileBuffer) Flush() error {
	return b.saveLogged()
}

// Close stops the periodic save check and flushes.
func (b *FileBuffer) Close() error {
	b.closed = true
	if b.check != nil {
		b.check.Stop()
		b.check = nil
	}
	return b.Flush()
}

func (b *FileBuffer) Stats() ports.LiveBufferStats {
	return ports.LiveBufferStats{
		StationCode:   b.stationCode,
		Entries:       len(b.buffer),
		LastFileWrite: b.lastFileWrite,
		LastSave:      b.lastSave,
		LastRewrite:   b.lastRewrite,
	}
}

// Path returns the buffer file of the connected station, or "" when no
// station is connected.
func (b *FileBuffer) Path() string {
	return FilePath(b.dir, b.stationCode)
}

// FilePath derives the buffer file for a station code.
func FilePath(dir, code string) string {
	if code == "" {
		return ""
	}
	return filepath.Join(dir, subdir, sanitize(code)+".dat")
}

func sanitize(code string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, code)
}

func (b *FileBuffer) scheduleCheck() {
	b.check = b.sched.AfterFunc(b.saveInterval, func() {
		if b.closed {
			return
		}
		if b.dirty && b.sched.Now().Sub(b.lastSave) >= b.saveInterval {
			b.saveLogged()
		}
		b.scheduleCheck()
	})
}

func (b *FileBuffer) trim() {
	minTime := b.sched.Now().Add(-b.retention)
	idx := sort.Search(len(b.buffer), func(i int) bool {
		return !b.buffer[i].Timestamp.Before(minTime)
	})
	if idx > 0 {
		b.buffer = append(b.buffer[:0], b.buffer[idx:]...)
	}
	b.obs.SetGauge(ports.MetricBufferEntries, float64(len(b.buffer)))
}

func (b *FileBuffer) saveLogged() error {
	err := b.save()
	if err != nil {
		b.obs.IncCounter(ports.MetricBufferSaveErrors, 1)
		b.obs.LogError("live_buffer_save_failed", err,
			ports.Field{Key: "station", Value: b.stationCode})
	}
	return err
}

func (b *FileBuffer) save() error {
	path := b.Path()
	if path == "" {
		return nil
	}

	now := b.sched.Now()
	b.lastSave = now

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("live buffer dir: %w", err)
	}

	rewrite := b.late ||
		b.lastFileWrite.IsZero() ||
		b.lastRewrite.IsZero() ||
		b.lastRewrite.Before(now.Add(-b.retention))
	if !rewrite {
		if _, err := os.Stat(path); err != nil {
			rewrite = true
		}
	}

	if !rewrite {
		err := b.appendNew(path)
		if err == nil {
			return nil
		}
		b.obs.LogError("live_buffer_append_failed", err,
			ports.Field{Key: "path", Value: path})
	}
	return b.rewrite(path, now)
}

// appendNew writes the entries newer than the newest record already on disk.
func (b *FileBuffer) appendNew(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	newest := b.lastFileWrite
	written := 0
	for _, s := range b.buffer {
		if !s.Timestamp.After(b.lastFileWrite) {
			continue
		}
		if _, err := w.WriteString(EncodeRecord(s)); err != nil {
			f.Close()
			return err
		}
		written++
		if s.Timestamp.After(newest) {
			newest = s.Timestamp
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	b.lastFileWrite = newest
	b.dirty = false
	b.obs.IncCounter(ports.MetricBufferAppends, 1)
	b.obs.LogDebug("live_buffer_appended",
		ports.Field{Key: "station", Value: b.stationCode},
		ports.Field{Key: "records", Value: written})
	return nil
}

// rewrite replaces the file with the full in-memory buffer. The new content
// is written to a temporary file first so a crash never leaves a truncated
// buffer behind.
func (b *FileBuffer) rewrite(path string, now time.Time) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("live buffer temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	var newest time.Time
	for _, s := range b.buffer {
		if _, err := w.WriteString(EncodeRecord(s)); err != nil {
			return cleanup(err)
		}
		if s.Timestamp.After(newest) {
			newest = s.Timestamp
		}
	}
	if err := w.Flush(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("live buffer replace: %w", err)
	}

	b.lastRewrite = now
	b.lastFileWrite = newest
	b.dirty = false
	b.late = false
	b.obs.IncCounter(ports.MetricBufferRewrites, 1)
	b.obs.LogDebug("live_buffer_rewritten",
		ports.Field{Key: "station", Value: b.stationCode},
		ports.Field{Key: "records", Value: len(b.buffer)})
	return nil
}

func (b *FileBuffer) load() {
	path := b.Path()
	if path == "" {
		return
	}

	loaded, dropped, err := ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.obs.IncCounter(ports.MetricBufferSaveErrors, 1)
			b.obs.LogError("live_buffer_load_failed", err,
				ports.Field{Key: "path", Value: path})
		}
		return
	}
	if dropped > 0 {
		b.obs.IncCounter(ports.MetricRecordsDropped, float64(dropped))
		b.obs.LogDebug("live_buffer_records_dropped",
			ports.Field{Key: "path", Value: path},
			ports.Field{Key: "count", Value: dropped})
	}

	b.buffer = loaded
	if n := len(loaded); n > 0 {
		b.lastFileWrite = loaded[n-1].Timestamp
	}
	b.trim()
	b.obs.LogInfo("live_buffer_loaded",
		ports.Field{Key: "station", Value: b.stationCode},
		ports.Field{Key: "records", Value: len(b.buffer)})
}

// ReadFile decodes every valid record of a buffer file, sorted by timestamp.
// It also reports how many lines were discarded as invalid.
func ReadFile(path string) ([]domain.Sample, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var (
		out     []domain.Sample
		dropped int
	)
	lines := NewLineReader(f)
	for {
		line, err := lines.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrLineTooLong) {
			dropped++
			continue
		}
		if err != nil {
			return nil, dropped, fmt.Errorf("read %s: %w", path, err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		s, err := DecodeRecord(line)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, dropped, nil
}

var _ ports.LiveBuffer = (*FileBuffer)(nil)
