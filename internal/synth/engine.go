// Package synth runs batch text-to-speech jobs against the voice backend and
// writes one audio file per text chunk.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/book-expert/voice-client/internal/config"
	"github.com/book-expert/voice-client/internal/fileutil"
	"github.com/book-expert/voice-client/internal/request"
	"github.com/book-expert/voice-client/internal/text"
	"github.com/book-expert/voice-client/internal/voiceapi"
)

const (
	// HealthCheckTimeout bounds the pre-flight health check.
	HealthCheckTimeout = 10 * time.Second

	filePermissions  = 0o600
	jsonExtension    = "json"
	outputFileFormat = "chunk_%04d.wav"
)

// Static errors.
var (
	ErrChunksPathEmpty = errors.New("chunks path cannot be empty")
	ErrOutputDirEmpty  = errors.New("output directory cannot be empty")
	ErrNoChunksFound   = errors.New("no chunks found")
	ErrJobFailed       = errors.New("batch job failed")
	ErrItemFailed      = errors.New("batch item failed")
)

// Log and error formats.
const (
	errFmtHealthCheckFailed = "voice service health check failed: %w"
	errFmtReadChunks        = "failed to read chunks: %w"
	errFmtParseChunks       = "failed to parse chunks JSON: %w"
	errFmtNoChunks          = "%w in %s"
	errFmtCreateOutput      = "failed to create output directory: %w"
	errFmtBuildBatch        = "failed to build batch %d: %w"
	errFmtSubmitBatch       = "failed to submit batch %d: %w"
	errFmtPollJob           = "failed to poll job %s: %w"
	errFmtJobFailed         = "%w: job %s"
	errFmtChunkFailed       = "chunk %d failed: %w"
	errFmtItemFailed        = "%w: %s"
	errFmtWriteChunk        = "failed to write %s: %w"
	logFmtServiceHealthy    = "Voice service is healthy (%s), processing %d chunks in %d batches"
	logFmtJobSubmitted      = "Submitted batch job %s with %d texts"
	logFmtJobProgress       = "Job %s is %s (%.0f%%)"
	logFmtChunkFailed       = "Failed to process chunk %d: %v"
	logFmtChunkWritten      = "Wrote chunk %d to %s (%s)"
)

// API is the part of the voice client the engine uses.
type API interface {
	Health(ctx context.Context) voiceapi.Result[voiceapi.HealthStatus]
	SubmitBatch(ctx context.Context, req voiceapi.BatchTTSRequest) voiceapi.Result[voiceapi.BatchJob]
	BatchStatus(ctx context.Context, jobID string) voiceapi.Result[voiceapi.BatchJob]
	Download(ctx context.Context, locator string, dst io.Writer) voiceapi.Result[int64]
}

// Report summarizes a completed run.
type Report struct {
	JobIDs  []string
	Written []string
	Failed  int
}

// Engine submits chunks as batch jobs, waits for them and downloads the
// produced audio with bounded, rate-limited concurrency.
type Engine struct {
	api          API
	log          *logger.Logger
	chunker      *text.Chunker
	limiter      *rate.Limiter
	workers      int
	pollInterval time.Duration
}

// NewEngine creates an engine from the batch configuration.
func NewEngine(api API, cfg config.BatchConfig, log *logger.Logger) *Engine {
	workers := max(cfg.Workers, 1)
	perSecond := max(cfg.RateLimit, 1)

	pollInterval := cfg.PollInterval()
	if pollInterval <= 0 {
		pollInterval = config.DefaultPollIntervalMS * time.Millisecond
	}

	return &Engine{
		api:          api,
		log:          log,
		chunker:      text.NewChunker(request.MaxTextLength),
		limiter:      rate.NewLimiter(rate.Every(time.Second/time.Duration(perSecond)), perSecond),
		workers:      workers,
		pollInterval: pollInterval,
	}
}

// ReadChunks loads chunks from path. A .json file must hold an array of
// strings; any other file is read as plain text and split by the chunker.
func (e *Engine) ReadChunks(path string) ([]string, error) {
	if path == "" {
		return nil, ErrChunksPathEmpty
	}

	// #nosec G304 -- the operator chose this input file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadChunks, err)
	}

	var chunks []string

	if fileutil.GetFileExtension(path) == jsonExtension {
		err = json.Unmarshal(data, &chunks)
		if err != nil {
			return nil, fmt.Errorf(errFmtParseChunks, err)
		}
	} else {
		chunks = e.chunker.Split(string(data))
	}

	chunks = dropBlank(chunks)
	if len(chunks) == 0 {
		return nil, fmt.Errorf(errFmtNoChunks, ErrNoChunksFound, path)
	}

	return chunks, nil
}

// ProcessFile reads chunks from path and processes them into outputDir.
func (e *Engine) ProcessFile(ctx context.Context, path, outputDir string, opts request.TTSOptions) (Report, error) {
	chunks, err := e.ReadChunks(path)
	if err != nil {
		return Report{}, err
	}

	return e.Process(ctx, chunks, outputDir, opts)
}

// Process synthesizes chunks into outputDir as chunk_0001.wav, chunk_0002.wav
// and so on. Chunks are grouped into jobs of at most request.MaxBatchSize.
// Failed chunks are logged and processing continues; the last failure is
// returned alongside the report.
func (e *Engine) Process(ctx context.Context, chunks []string, outputDir string, opts request.TTSOptions) (Report, error) {
	if outputDir == "" {
		return Report{}, ErrOutputDirEmpty
	}

	if len(chunks) == 0 {
		return Report{}, ErrNoChunksFound
	}

	err := fileutil.EnsureDir(outputDir)
	if err != nil {
		return Report{}, fmt.Errorf(errFmtCreateOutput, err)
	}

	batches := splitBatches(chunks, request.MaxBatchSize)

	err = e.checkServiceHealth(ctx, len(chunks), len(batches))
	if err != nil {
		return Report{}, err
	}

	run := &runState{}

	for batchIndex, batch := range batches {
		offset := batchIndex * request.MaxBatchSize

		job, jobErr := e.runJob(ctx, batchIndex+1, batch, opts)
		if jobErr != nil {
			return run.report(), jobErr
		}

		run.addJob(job.JobID)
		e.downloadJob(ctx, job, offset, outputDir, run)
	}

	return run.report(), run.lastError()
}

func (e *Engine) checkServiceHealth(ctx context.Context, chunkCount, batchCount int) error {
	healthCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	health, err := e.api.Health(healthCtx).Unwrap()
	if err != nil {
		return fmt.Errorf(errFmtHealthCheckFailed, err)
	}

	e.log.Info(logFmtServiceHealthy, health.Status, chunkCount, batchCount)

	return nil
}

func (e *Engine) runJob(ctx context.Context, number int, texts []string, opts request.TTSOptions) (voiceapi.BatchJob, error) {
	req, err := request.BuildBatch(texts, opts)
	if err != nil {
		return voiceapi.BatchJob{}, fmt.Errorf(errFmtBuildBatch, number, err)
	}

	job, err := e.api.SubmitBatch(ctx, req).Unwrap()
	if err != nil {
		return voiceapi.BatchJob{}, fmt.Errorf(errFmtSubmitBatch, number, err)
	}

	e.log.Info(logFmtJobSubmitted, job.JobID, len(texts))

	return e.awaitJob(ctx, job)
}

// awaitJob polls until the job reaches a terminal status.
func (e *Engine) awaitJob(ctx context.Context, job voiceapi.BatchJob) (voiceapi.BatchJob, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for !job.Done() {
		select {
		case <-ctx.Done():
			return job, fmt.Errorf(errFmtPollJob, job.JobID, ctx.Err())
		case <-ticker.C:
		}

		status, err := e.api.BatchStatus(ctx, job.JobID).Unwrap()
		if err != nil {
			return job, fmt.Errorf(errFmtPollJob, job.JobID, err)
		}

		job = status
		e.log.Info(logFmtJobProgress, job.JobID, job.Status, job.Progress*100)
	}

	if job.Status == voiceapi.JobFailed && len(job.Results) == 0 {
		return job, fmt.Errorf(errFmtJobFailed, ErrJobFailed, job.JobID)
	}

	return job, nil
}

// downloadJob fetches every completed item of job concurrently.
func (e *Engine) downloadJob(ctx context.Context, job voiceapi.BatchJob, offset int, outputDir string, run *runState) {
	var group errgroup.Group

	group.SetLimit(e.workers)

	for position, item := range job.Results {
		chunkNumber := offset + itemIndex(item, position) + 1

		if item.Status != voiceapi.JobCompleted || item.AudioURL == "" {
			run.fail(e.log, chunkNumber, fmt.Errorf(errFmtItemFailed, ErrItemFailed, itemReason(item)))

			continue
		}

		group.Go(func() error {
			path, err := e.saveChunk(ctx, item.AudioURL, outputDir, chunkNumber)
			if err != nil {
				run.fail(e.log, chunkNumber, err)

				return nil
			}

			run.written(path)

			return nil
		})
	}

	_ = group.Wait()
}

func (e *Engine) saveChunk(ctx context.Context, locator, outputDir string, chunkNumber int) (string, error) {
	err := e.limiter.Wait(ctx)
	if err != nil {
		return "", err
	}

	path := filepath.Join(outputDir, fmt.Sprintf(outputFileFormat, chunkNumber))

	// #nosec G304 -- path is built from the output directory and a fixed pattern
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return "", fmt.Errorf(errFmtWriteChunk, path, err)
	}

	written, downloadErr := e.api.Download(ctx, locator, file).Unwrap()
	closeErr := file.Close()

	if downloadErr != nil {
		_ = os.Remove(path)

		return "", downloadErr
	}

	if closeErr != nil {
		return "", fmt.Errorf(errFmtWriteChunk, path, closeErr)
	}

	e.log.Info(logFmtChunkWritten, chunkNumber, path, fileutil.FormatFileSize(written))

	return path, nil
}

// runState collects results from concurrent downloads.
type runState struct {
	jobIDs  []string
	paths   []string
	lastErr error
	failed  int
	mu      sync.Mutex
}

func (r *runState) addJob(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobIDs = append(r.jobIDs, id)
}

func (r *runState) written(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.paths = append(r.paths, path)
}

func (r *runState) fail(log *logger.Logger, chunkNumber int, err error) {
	log.Error(logFmtChunkFailed, chunkNumber, err)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.failed++
	r.lastErr = fmt.Errorf(errFmtChunkFailed, chunkNumber, err)
}

func (r *runState) lastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastErr
}

func (r *runState) report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := append([]string(nil), r.paths...)
	slices.Sort(paths)

	return Report{
		JobIDs:  append([]string(nil), r.jobIDs...),
		Written: paths,
		Failed:  r.failed,
	}
}

func splitBatches(chunks []string, size int) [][]string {
	batches := make([][]string, 0, (len(chunks)+size-1)/size)

	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		batches = append(batches, chunks[start:end])
	}

	return batches
}

// itemIndex prefers the backend's zero-based index and falls back to the
// item's position when the index is out of range.
func itemIndex(item voiceapi.BatchItem, position int) int {
	if item.Index < 0 || item.Index >= request.MaxBatchSize {
		return position
	}

	return item.Index
}

func itemReason(item voiceapi.BatchItem) string {
	if item.Error != "" {
		return item.Error
	}

	return item.Status
}

func dropBlank(chunks []string) []string {
	kept := chunks[:0]

	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) != "" {
			kept = append(kept, chunk)
		}
	}

	return kept
}
