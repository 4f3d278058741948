package streamchart

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Sample is the NDJSON line format a TailSource reads: one sample of one
// series per line.
type Sample struct {
	Series string  `json:"series"`
	Time   float64 `json:"time"`
	Value  float64 `json:"value"`
}

// lineReader yields only whole newline-terminated lines from a reader.
// When tailing a file that is being actively written, the last line may
// be partial; it is held back until its terminator arrives so no batch
// ever contains a half-parsed sample.
type lineReader struct {
	r       *bufio.Reader
	partial []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

// next returns the next complete line without its terminator, or io.EOF
// when no complete line is available yet.
func (l *lineReader) next() ([]byte, error) {
	data, err := l.r.ReadBytes('\n')
	if err != nil {
		l.partial = append(l.partial, data...)
		return nil, io.EOF
	}
	line := data[:len(data)-1]
	if len(l.partial) > 0 {
		line = append(append([]byte{}, l.partial...), line...)
		l.partial = l.partial[:0]
	}
	return line, nil
}

// TailSource follows a growing NDJSON sample log and emits each burst of
// appended lines as one ChartData batch. It is a live ingest path for
// producers that write samples to a file rather than calling Publish
// directly.
type TailSource struct {
	path string
	out  chan ChartData

	mu     sync.Mutex
	closed bool
}

// NewTailSource creates a source tailing the given file.
func NewTailSource(path string) *TailSource {
	return &TailSource{
		path: path,
		out:  make(chan ChartData, 16),
	}
}

// C returns the channel of emitted batches. It is closed when Run
// returns.
func (t *TailSource) C() <-chan ChartData {
	return t.out
}

// Run reads the file's existing content, then watches it and emits a
// batch for every burst of appended complete lines. Run blocks until the
// context is cancelled or the watch fails.
func (t *TailSource) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrSourceClosed
	}
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.out)
	}()

	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("open sample log: %w", err)
	}
	defer func() { _ = f.Close() }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(t.path); err != nil {
		return fmt.Errorf("watch sample log: %w", err)
	}

	lr := newLineReader(f)
	if err := t.emitPending(ctx, lr); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			if err := t.emitPending(ctx, lr); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch sample log: %w", err)
		}
	}
}

// emitPending drains all complete lines currently available and emits
// them as a single batch.
func (t *TailSource) emitPending(ctx context.Context, lr *lineReader) error {
	points := make(map[string][]Datum)
	for {
		line, err := lr.next()
		if err != nil {
			break
		}
		if len(line) == 0 {
			continue
		}
		sample, err := parseSample(line)
		if err != nil {
			// A malformed line is skipped, not fatal: the producer may
			// interleave its own log output with samples.
			continue
		}
		points[sample.Series] = append(points[sample.Series], Datum{Time: sample.Time, Value: sample.Value})
	}
	if len(points) == 0 {
		return nil
	}
	select {
	case t.out <- ChartDataFrom(points):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func parseSample(line []byte) (Sample, error) {
	var s Sample
	if err := json.Unmarshal(line, &s); err != nil {
		return Sample{}, err
	}
	if s.Series == "" {
		return Sample{}, fmt.Errorf("sample without series name")
	}
	return s, nil
}
