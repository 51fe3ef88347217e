package calllog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	l.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }

	id, err := l.Append(Entry{Provider: "deepseek", Model: "deepseek-chat", Status: "success", LatencyMS: 120})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	_, err = l.Append(Entry{ID: "fixed", Provider: "deepseek", Status: "error", Kind: "rate_limit"})
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "api_calls_20240309.log"))
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, "2024-03-09T10:00:00Z", entries[0].Time)
	assert.Equal(t, "fixed", entries[1].ID)
	assert.Equal(t, "rate_limit", entries[1].Kind)
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	old := filepath.Join(dir, "api_calls_20200101.log")
	fresh := filepath.Join(dir, "api_calls_20990101.log")
	other := filepath.Join(dir, "notes.log")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte(`{"id":"x"}`+"\n"), 0o644))
	}
	past := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	n, err := l.CompressOlder(3)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoFileExists(t, old)
	assert.FileExists(t, old+".gz")
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)

	gzf, err := os.Open(old + ".gz")
	require.NoError(t, err)
	defer gzf.Close()
	zr, err := gzip.NewReader(gzf)
	require.NoError(t, err)
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"x"}`+"\n", string(b))

	n, err = l.CompressOlder(0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
