// Package file persists the audit trail under a log directory: a plain-text
// system log and a JSON array of feedback records.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hamed0406/homecheck/internal/domain"
)

const (
	SystemLogName = "system.log"
	FeedbackName  = "feedback_log.json"
)

// Sink writes the system log through lumberjack (append-only, lazily
// created) and rewrites the feedback log as a whole under a process mutex
// plus an advisory file lock, so overlapping rounds never lose records.
type Sink struct {
	dir      string
	log      *zap.Logger
	system   *lumberjack.Logger
	mu       sync.Mutex
	now      func() time.Time
	feedback string
	// written is the system log file lumberjack last wrote to.
	written  os.FileInfo
}

// New prepares dir and both log files. A failure here means the audit
// trail cannot be kept and is reported as domain.ErrStorage.
func New(dir string, log *zap.Logger) (*Sink, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sink{
		dir: dir,
		log: log,
		system: &lumberjack.Logger{
			Filename: filepath.Join(dir, SystemLogName),
			MaxSize:  512, // MB
			// MaxBackups and MaxAge stay 0: rotated audit logs are never removed.
		},
		now:      time.Now,
		feedback: filepath.Join(dir, FeedbackName),
	}
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) SystemLogPath() string { return s.system.Filename }
func (s *Sink) FeedbackPath() string  { return s.feedback }

// ensure creates the directory, an empty system log and an empty feedback
// list when they are missing. Existing files are left untouched.
func (s *Sink) ensure() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create log dir %s: %v", domain.ErrStorage, s.dir, err)
	}
	f, err := os.OpenFile(s.system.Filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", domain.ErrStorage, s.system.Filename, err)
	}
	_ = f.Close()

	if _, err := os.Stat(s.feedback); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(s.feedback, []byte("[]"), 0o644); err != nil {
			return fmt.Errorf("%w: create %s: %v", domain.ErrStorage, s.feedback, err)
		}
	}
	return nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// AppendSystemLog writes "<ISO-8601 timestamp> - <message>". Line breaks in
// message are flattened so every entry stays on one line.
func (s *Sink) AppendSystemLog(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return err
	}
	s.reopenIfReplaced()

	line := fmt.Sprintf("%s - %s\n", s.now().Format(time.RFC3339Nano), lineBreaks.Replace(message))
	if _, err := s.system.Write([]byte(line)); err != nil {
		return fmt.Errorf("%w: write system log: %v", domain.ErrStorage, err)
	}
	s.written, _ = os.Stat(s.system.Filename)
	return nil
}

// reopenIfReplaced drops lumberjack's handle when the file at the system log
// path is no longer the one it has been writing to (deleted and recreated,
// or swapped by another process). The next Write reopens the path.
func (s *Sink) reopenIfReplaced() {
	if s.written == nil {
		return
	}
	fi, err := os.Stat(s.system.Filename)
	if err != nil || !os.SameFile(fi, s.written) {
		_ = s.system.Close()
		s.written = nil
	}
}

// AppendRecord loads the feedback list, appends rec and atomically replaces
// the file. A missing or unparsable file counts as an empty list. Entries
// the loader does not understand are carried over verbatim.
func (s *Sink) AppendRecord(rec domain.Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return err
	}

	lock, err := lockFile(s.feedback + ".lock")
	if err != nil {
		return fmt.Errorf("%w: lock feedback log: %v", domain.ErrStorage, err)
	}
	defer unlockFile(lock)

	entries := s.load()
	entries = append(entries, raw)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode feedback log: %w", err)
	}
	if err := writeAtomic(s.feedback, data); err != nil {
		return fmt.Errorf("%w: rewrite feedback log: %v", domain.ErrStorage, err)
	}
	return nil
}

// ReadRecords decodes the feedback log. A missing file yields an empty list.
// Entries written without a zone offset (older tooling) are read in local
// time; entries that still do not decode are skipped.
func (s *Sink) ReadRecords() ([]domain.Record, error) {
	data, err := os.ReadFile(s.feedback)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.feedback, err)
	}
	out := make([]domain.Record, 0, len(entries))
	for _, raw := range entries {
		rec, ok := decodeRecord(raw)
		if !ok {
			s.log.Debug("feedback_entry_skipped", zap.ByteString("entry", raw))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

const zonelessLayout = "2006-01-02T15:04:05.999999999"

func decodeRecord(raw json.RawMessage) (domain.Record, bool) {
	var rec domain.Record
	if err := json.Unmarshal(raw, &rec); err == nil {
		return rec, true
	}
	var loose struct {
		Timestamp string `json:"timestamp"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return domain.Record{}, false
	}
	ts, err := time.ParseInLocation(zonelessLayout, loose.Timestamp, time.Local)
	if err != nil {
		return domain.Record{}, false
	}
	return domain.Record{Timestamp: ts, Error: loose.Error}, true
}

func (s *Sink) load() []json.RawMessage {
	data, err := os.ReadFile(s.feedback)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("feedback_read_error", zap.String("path", s.feedback), zap.Error(err))
		}
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn("feedback_corrupt_reset", zap.String("path", s.feedback), zap.Error(err))
		return nil
	}
	return entries
}

// Close releases the system log file handle.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = nil
	return s.system.Close()
}

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		err = multierr.Append(err, tmp.Close())
		return err
	}
	if err = tmp.Sync(); err != nil {
		err = multierr.Append(err, tmp.Close())
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func lockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func unlockFile(f *os.File) {
	if f == nil {
		return
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	_ = f.Close()
}
