// Package history archives settled rounds as JSON lines. Records are
// buffered in memory and appended to the archive every FlushRecords records,
// every FlushInterval and on Close.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/blackjack/internal/game"
)

const (
	defaultFilename    = "rounds.jsonl"
	maxFlushFailures   = 3
	defaultFlushEvery  = 50
	defaultFlushPeriod = 10 * time.Second
)

// Record is one archived round.
type Record struct {
	Seq      int           `json:"seq"`
	RoundID  string        `json:"round_id"`
	Account  string        `json:"account"`
	Time     time.Time     `json:"time"`
	Phase    game.Phase    `json:"phase"`
	Stake    int64         `json:"stake"`
	Payout   int64         `json:"payout"`
	Delta    int64         `json:"delta"`
	Snapshot game.Snapshot `json:"snapshot"`
}

// Config configures a Recorder
type Config struct {
	Dir           string
	Filename      string
	FlushRecords  int
	FlushInterval time.Duration
	Clock         quartz.Clock
}

// Recorder buffers records and appends them to Dir/Filename.
type Recorder struct {
	cfg     Config
	logger  *log.Logger
	outPath string

	mu       sync.Mutex
	buffer   []Record
	seq      int
	failures int
	disabled bool

	flushMu  sync.Mutex
	flushReq chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRecorder creates the archive directory and starts the periodic flush.
func NewRecorder(cfg Config, logger *log.Logger) (*Recorder, error) {
	if cfg.Dir == "" {
		return nil, errors.New("history: Dir is required")
	}
	if cfg.Filename == "" {
		cfg.Filename = defaultFilename
	}
	if cfg.FlushRecords <= 0 {
		cfg.FlushRecords = defaultFlushEvery
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushPeriod
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	outPath := filepath.Join(cfg.Dir, cfg.Filename)
	last, err := lastSeq(outPath)
	if err != nil {
		return nil, fmt.Errorf("history: read archive: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Recorder{
		cfg:      cfg,
		logger:   logger.WithPrefix("history"),
		outPath:  outPath,
		seq:      last,
		buffer:   make([]Record, 0, cfg.FlushRecords),
		flushReq: make(chan struct{}, 1),
		cancel:   cancel,
	}

	cfg.Clock.TickerFunc(ctx, cfg.FlushInterval, func() error {
		r.flushAndReport()
		return nil
	}, "history", "flush")

	r.wg.Add(1)
	go r.run(ctx)
	return r, nil
}

// Path returns the archive file
func (r *Recorder) Path() string { return r.outPath }

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-r.flushReq:
			r.flushAndReport()
		case <-ctx.Done():
			return
		}
	}
}

// Record buffers one settled round. The record's Seq and Time are assigned
// here.
func (r *Recorder) Record(rec Record) {
	r.mu.Lock()
	if r.disabled {
		r.mu.Unlock()
		return
	}
	r.seq++
	rec.Seq = r.seq
	if rec.Time.IsZero() {
		rec.Time = r.cfg.Clock.Now()
	}
	r.buffer = append(r.buffer, rec)
	full := len(r.buffer) >= r.cfg.FlushRecords
	r.mu.Unlock()

	if full {
		select {
		case r.flushReq <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of buffered records
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}

// Flush appends every buffered record to the archive.
func (r *Recorder) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	if r.disabled || len(r.buffer) == 0 {
		r.mu.Unlock()
		return nil
	}
	records := append([]Record(nil), r.buffer...)
	r.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("history: encode round %s: %w", rec.RoundID, err)
		}
	}
	if err := appendArchive(r.outPath, buf.Bytes()); err != nil {
		return err
	}

	r.mu.Lock()
	r.buffer = r.buffer[len(records):]
	r.mu.Unlock()
	return nil
}

// appendArchive appends data to path as a whole. On failure the file is cut
// back to its previous length so a retried flush never duplicates records.
func appendArchive(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Truncate(offset)
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Truncate(path, offset)
		return err
	}
	return nil
}

func (r *Recorder) flushAndReport() {
	err := r.Flush()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.failures = 0
		return
	}
	r.failures++
	r.logger.Error("History flush failed", "path", r.outPath, "error", err)
	if r.failures >= maxFlushFailures {
		r.logger.Error("History recording disabled after repeated failures", "dropped", len(r.buffer))
		r.buffer = nil
		r.disabled = true
	}
}

// Disabled reports whether recording stopped after repeated flush failures
func (r *Recorder) Disabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}

// Close stops the flush loop and writes what is left.
func (r *Recorder) Close() error {
	r.cancel()
	r.wg.Wait()
	return r.Flush()
}

// Load reads every record in an archive, oldest first.
func Load(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []Record
	dec := json.NewDecoder(file)
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return out, fmt.Errorf("history: decode record %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func lastSeq(path string) (int, error) {
	records, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	last := 0
	for _, rec := range records {
		last = max(last, rec.Seq)
	}
	return last, nil
}
