package calllog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const filePrefix = "api_calls_"

// Entry is one completion call.
type Entry struct {
	ID        string         `json:"id"`
	Time      string         `json:"time"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Operation string         `json:"operation,omitempty"`
	Status    string         `json:"status"`
	Kind      string         `json:"error_kind,omitempty"`
	Error     string         `json:"error,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
	Attempts  int            `json:"attempts,omitempty"`
	Preview   string         `json:"preview,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Log appends entries to daily JSON-lines files under Dir.
type Log struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func New(dir string) *Log {
	if dir == "" {
		dir = "logs"
	}
	return &Log{dir: dir, now: time.Now}
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) dailyFilepath(t time.Time) string {
	return filepath.Join(l.dir, filePrefix+t.Format("20060102")+".log")
}

// Append writes e to today's file. An empty ID is filled with a new UUID.
func (l *Log) Append(e Entry) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Time = now.Format(time.RFC3339)
	p := l.dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode call log entry: %w", err)
	}
	_, err = fmt.Fprintln(f, string(b))
	return e.ID, err
}

// CompressOlder gzips call log files last modified more than retentionDays
// ago and removes the originals. retentionDays <= 0 is a no-op.
func (l *Log) CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().AddDate(0, 0, -retentionDays)
	compressed := 0
	err := filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasPrefix(d.Name(), filePrefix) || filepath.Ext(p) != ".log" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return nil
		}
		_ = os.Remove(p)
		compressed++
		return nil
	})
	return compressed, err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
