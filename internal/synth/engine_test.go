package synth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-client/internal/config"
	"github.com/book-expert/voice-client/internal/request"
	"github.com/book-expert/voice-client/internal/synth"
	"github.com/book-expert/voice-client/internal/voiceapi"
)

// mockBackend simulates the batch endpoints. Each job completes on its first
// status poll; the audio served for an item is the item's text.
type mockBackend struct {
	server      *httptest.Server
	jobs        map[string][]string
	audio       map[string]string
	failTexts   map[string]bool
	submissions atomic.Int32
	healthy     bool
	mu          sync.Mutex
}

func newMockBackend(t *testing.T) *mockBackend {
	t.Helper()

	backend := &mockBackend{
		jobs:      make(map[string][]string),
		audio:     make(map[string]string),
		failTexts: make(map[string]bool),
		healthy:   true,
	}

	backend.server = httptest.NewServer(http.HandlerFunc(backend.handle))
	t.Cleanup(backend.server.Close)

	return backend
}

func (b *mockBackend) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.URL.Path == voiceapi.EndpointHealth:
		if !b.healthy {
			http.Error(w, `{"detail":"models not loaded"}`, http.StatusServiceUnavailable)

			return
		}

		writeJSON(w, voiceapi.HealthStatus{Status: "healthy", Version: "1.0.0"})
	case r.URL.Path == voiceapi.EndpointBatchTTS:
		var req voiceapi.BatchTTSRequest

		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		id := fmt.Sprintf("job-%d", b.submissions.Add(1))
		b.jobs[id] = req.Texts

		writeJSON(w, voiceapi.BatchJob{JobID: id, Status: voiceapi.JobCreated})
	case strings.HasPrefix(r.URL.Path, voiceapi.EndpointBatchJobs+"/"):
		id := strings.TrimPrefix(r.URL.Path, voiceapi.EndpointBatchJobs+"/")

		texts, ok := b.jobs[id]
		if !ok {
			http.Error(w, `{"detail":"job not found"}`, http.StatusNotFound)

			return
		}

		writeJSON(w, b.completedJob(id, texts))
	case strings.HasPrefix(r.URL.Path, "/outputs/"):
		content, ok := b.audio[r.URL.Path]
		if !ok {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte(content))
	default:
		http.NotFound(w, r)
	}
}

func (b *mockBackend) completedJob(id string, texts []string) voiceapi.BatchJob {
	job := voiceapi.BatchJob{JobID: id, Status: voiceapi.JobCompleted, Progress: 1}

	for i, text := range texts {
		item := voiceapi.BatchItem{Text: text, Index: i, Status: voiceapi.JobCompleted}

		if b.failTexts[text] {
			item.Status = voiceapi.JobFailed
			item.Error = "synthesis failed"
		} else {
			item.AudioURL = fmt.Sprintf("/outputs/%s_%d.wav", id, i)
			b.audio[item.AudioURL] = text
		}

		job.Results = append(job.Results, item)
	}

	return job
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

func newEngine(t *testing.T, backend *mockBackend) *synth.Engine {
	t.Helper()

	log, err := logger.New(t.TempDir(), "synth-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	client := voiceapi.NewClient(backend.server.URL, 5*time.Second)
	cfg := config.BatchConfig{Workers: 3, RateLimit: 1000, PollIntervalMS: 5}

	return synth.NewEngine(client, cfg, log)
}

func readChunk(t *testing.T, dir string, number int) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("chunk_%04d.wav", number)))
	require.NoError(t, err)

	return string(data)
}

func TestEngine_Process(t *testing.T) {
	t.Parallel()

	backend := newMockBackend(t)
	engine := newEngine(t, backend)
	outputDir := filepath.Join(t.TempDir(), "audio")

	chunks := []string{"first chunk", "second chunk", "third chunk"}

	report, err := engine.Process(context.Background(), chunks, outputDir, request.TTSOptions{Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, []string{"job-1"}, report.JobIDs)
	assert.Len(t, report.Written, 3)
	assert.Zero(t, report.Failed)

	for i, chunk := range chunks {
		assert.Equal(t, chunk, readChunk(t, outputDir, i+1))
	}
}

func TestEngine_ProcessSplitsLargeInputIntoJobs(t *testing.T) {
	t.Parallel()

	backend := newMockBackend(t)
	engine := newEngine(t, backend)
	outputDir := t.TempDir()

	chunks := make([]string, request.MaxBatchSize*2+5)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk number %d", i+1)
	}

	report, err := engine.Process(context.Background(), chunks, outputDir, request.TTSOptions{})
	require.NoError(t, err)

	assert.Len(t, report.JobIDs, 3)
	assert.Len(t, report.Written, len(chunks))
	assert.Equal(t, "chunk number 1", readChunk(t, outputDir, 1))
	assert.Equal(t, "chunk number 51", readChunk(t, outputDir, 51))
	assert.Equal(t, "chunk number 105", readChunk(t, outputDir, 105))
}

func TestEngine_ProcessContinuesPastFailedItems(t *testing.T) {
	t.Parallel()

	backend := newMockBackend(t)
	backend.failTexts["bad chunk"] = true

	engine := newEngine(t, backend)
	outputDir := t.TempDir()

	report, err := engine.Process(context.Background(), []string{"good chunk", "bad chunk", "also good"}, outputDir,
		request.TTSOptions{})
	require.ErrorIs(t, err, synth.ErrItemFailed)
	assert.Contains(t, err.Error(), "chunk 2")

	assert.Equal(t, 1, report.Failed)
	assert.Len(t, report.Written, 2)
	assert.Equal(t, "also good", readChunk(t, outputDir, 3))
	assert.NoFileExists(t, filepath.Join(outputDir, "chunk_0002.wav"))
}

func TestEngine_ProcessFailsFastWhenUnhealthy(t *testing.T) {
	t.Parallel()

	backend := newMockBackend(t)
	backend.healthy = false

	engine := newEngine(t, backend)

	_, err := engine.Process(context.Background(), []string{"hello"}, t.TempDir(), request.TTSOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
	assert.Zero(t, backend.submissions.Load())
}

func TestEngine_ProcessRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	backend := newMockBackend(t)
	engine := newEngine(t, backend)

	_, err := engine.Process(context.Background(), []string{"x"}, "", request.TTSOptions{})
	require.ErrorIs(t, err, synth.ErrOutputDirEmpty)

	_, err = engine.Process(context.Background(), nil, t.TempDir(), request.TTSOptions{})
	require.ErrorIs(t, err, synth.ErrNoChunksFound)

	_, err = engine.Process(context.Background(), []string{"x"}, t.TempDir(), request.TTSOptions{Language: "xx"})
	require.ErrorIs(t, err, request.ErrUnsupportedLanguage)
	assert.Zero(t, backend.submissions.Load())
}

func TestEngine_ReadChunks(t *testing.T) {
	t.Parallel()

	backend := newMockBackend(t)
	engine := newEngine(t, backend)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "chunks.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`["one", "  ", "two"]`), 0o600))

	chunks, err := engine.ReadChunks(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, chunks)

	textPath := filepath.Join(dir, "book.txt")
	long := strings.Repeat("A sentence of moderate length. ", 80)
	require.NoError(t, os.WriteFile(textPath, []byte(long), 0o600))

	chunks, err = engine.ReadChunks(textPath)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, request.CharCount(chunk), request.MaxTextLength)
	}

	emptyPath := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(emptyPath, []byte(`[]`), 0o600))

	_, err = engine.ReadChunks(emptyPath)
	require.ErrorIs(t, err, synth.ErrNoChunksFound)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{`), 0o600))

	_, err = engine.ReadChunks(badPath)
	require.Error(t, err)

	_, err = engine.ReadChunks("")
	require.ErrorIs(t, err, synth.ErrChunksPathEmpty)
}

func TestEngine_ProcessFile(t *testing.T) {
	t.Parallel()

	backend := newMockBackend(t)
	engine := newEngine(t, backend)
	dir := t.TempDir()

	path := filepath.Join(dir, "chunks.json")
	require.NoError(t, os.WriteFile(path, []byte(`["alpha", "beta"]`), 0o600))

	report, err := engine.ProcessFile(context.Background(), path, filepath.Join(dir, "out"), request.TTSOptions{})
	require.NoError(t, err)
	assert.Len(t, report.Written, 2)
}
