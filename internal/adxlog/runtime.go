// Package adxlog is the runtime business-log sink for auction traces. It is
// an inbox, not a call chain: callers hand off a pre-built JSON message and
// never wait on disk. A background worker batches records per level and
// appends them to hour-stamped, level-partitioned files with a retention
// sweep.
package adxlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thenexusengine/tne_adx/internal/config"
	"github.com/thenexusengine/tne_adx/pkg/logger"
)

// Log levels, each written to its own file family.
const (
	LevelTrace = "TRACE"
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Levels lists every level the sink partitions by.
var Levels = []string{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError}

// hourSuffixLayout stamps file names so they roll hourly.
const hourSuffixLayout = "2006-01-02-15"

type entry struct {
	level string
	line  string
}

// record is the on-disk line shape. Timestamps honor the process TZ.
type record struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// Logger is the asynchronous, level-partitioned log sink.
type Logger struct {
	dir      string
	prefix   string
	batch    int
	interval time.Duration

	// retention and sweepEvery govern the cleanup of rolled files.
	retention  time.Duration
	sweepEvery time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan entry

	writerDone chan struct{}
	sweepStop  chan struct{}
	closeOnce  sync.Once

	dropped atomic.Uint64
}

// New creates the sink and starts its writer and retention sweeper.
// Zero or negative sizes fall back to the configured defaults. Failure to
// create the log directory is a bootstrap error.
func New(dir, prefix string, bufferSize, batchSize int, flushInterval time.Duration) (*Logger, error) {
	if bufferSize <= 0 {
		bufferSize = config.LogChannelCapacity
	}
	if batchSize <= 0 {
		batchSize = config.LogBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = config.LogFlushInterval
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	l := &Logger{
		dir:        dir,
		prefix:     prefix,
		batch:      batchSize,
		interval:   flushInterval,
		retention:  config.LogRetention,
		sweepEvery: config.LogCleanupInterval,
		ch:         make(chan entry, bufferSize),
		writerDone: make(chan struct{}),
		sweepStop:  make(chan struct{}),
	}

	go l.run()
	go l.sweep()

	return l, nil
}

// Log enqueues one record. It never blocks the request path: when the
// buffer is full or the sink is closed, the record is dropped and counted.
func (l *Logger) Log(level, message string) {
	line, _ := json.Marshal(record{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     level,
		Message:   message,
	})

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.dropped.Add(1)
		return
	}
	select {
	case l.ch <- entry{level: level, line: string(line)}:
	default:
		l.dropped.Add(1)
	}
}

// Dropped reports how many records were discarded under buffer pressure.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close drains queued records to disk and stops the background workers.
// Safe to call more than once.
func (l *Logger) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.ch)
		l.mu.Unlock()

		close(l.sweepStop)

		select {
		case <-l.writerDone:
		case <-time.After(2 * time.Second):
			logger.Log.Warn().Msg("Runtime log drain timed out")
		}
	})
}

// run is the single writer: it groups records by level and flushes a level
// when its batch fills or the interval ticks, whichever first.
func (l *Logger) run() {
	defer close(l.writerDone)

	buffers := make(map[string][]string, len(Levels))
	for _, level := range Levels {
		buffers[level] = nil
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-l.ch:
			if !ok {
				l.flushAll(buffers)
				return
			}
			buffers[e.level] = append(buffers[e.level], e.line)
			if len(buffers[e.level]) >= l.batch {
				l.flush(e.level, buffers[e.level])
				buffers[e.level] = buffers[e.level][:0]
			}
		case <-ticker.C:
			l.flushAll(buffers)
		}
	}
}

func (l *Logger) flushAll(buffers map[string][]string) {
	for level, lines := range buffers {
		if len(lines) == 0 {
			continue
		}
		l.flush(level, lines)
		buffers[level] = lines[:0]
	}
}

// flush appends one batch to the current hour's file for the level.
func (l *Logger) flush(level string, lines []string) {
	name := fmt.Sprintf("%s_%s.json.%s", l.prefix, strings.ToLower(level), time.Now().Format(hourSuffixLayout))
	path := filepath.Join(l.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Log.Error().Err(err).Str("path", path).Msg("Failed to open runtime log file")
		return
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		logger.Log.Error().Err(err).Str("path", path).Msg("Failed to write runtime logs")
	}
}

// sweep deletes expired files on an hourly cadence, starting immediately.
func (l *Logger) sweep() {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()

	for {
		l.cleanupOldLogs()
		select {
		case <-l.sweepStop:
			return
		case <-ticker.C:
		}
	}
}

// cleanupOldLogs removes every file in the log directory whose modification
// time is beyond the retention window.
func (l *Logger) cleanupOldLogs() {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		logger.Log.Error().Err(err).Str("dir", l.dir).Msg("Failed to read log directory")
		return
	}

	now := time.Now()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= l.retention {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		if err := os.Remove(path); err != nil {
			logger.Log.Error().Err(err).Str("path", path).Msg("Failed to delete expired log file")
		} else {
			logger.Log.Debug().Str("path", path).Msg("Deleted expired log file")
		}
	}
}
