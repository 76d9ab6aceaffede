package audit

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	l.Log(GenerationEntry{Provider: "gemini", Target: 5, Matched: 3, Duration: 1500 * time.Millisecond, CorrelationID: "abc"})

	var got GenerationEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, fixed, got.Timestamp)
	assert.Equal(t, int64(1500), got.LatencyMs)
	assert.Equal(t, 3, got.Matched)
	assert.Equal(t, "abc", got.CorrelationID)
}

func TestLogger_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Log(GenerationEntry{Provider: "openai"})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)))
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "generation.log")
	l, err := NewFileLogger(path)
	require.NoError(t, err)
	assert.NotNil(t, l)
}
