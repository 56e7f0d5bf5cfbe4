// Package voiceapi is the HTTP client for the voice backend's JSON API.
//
// Every operation returns a Result: either a decoded payload or an *Error.
// Transport failures, non-2xx statuses and 2xx bodies that carry an "error"
// field are all normalized into the same *Error shape, so callers only need
// to check Result.OK.
package voiceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/book-expert/voice-client/internal/fileutil"
	"github.com/book-expert/voice-client/internal/observe"
)

// API endpoints and paths.
const (
	EndpointHealth     = "/healthz"
	EndpointTTS        = "/api/v1/tts"
	EndpointVC         = "/api/v1/vc"
	EndpointVCUpload   = "/api/v1/vc/upload"
	EndpointProfiles   = "/api/v1/profiles"
	EndpointBatchTTS   = "/api/v1/batch/tts"
	EndpointBatchJobs  = "/api/v1/batch/jobs"
	routeProfileByID   = EndpointProfiles + "/{id}"
	routeBatchJobByID  = EndpointBatchJobs + "/{id}"
	routeDownload      = "download"
	defaultHTTPTimeout = 120 * time.Second
)

// HTTP headers.
const (
	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"
	HeaderUserAgent   = "User-Agent"
	HeaderRequestID   = "X-Request-ID"
	contentTypeJSON   = "application/json"
	acceptAny         = "*/*"
	DefaultUserAgent  = "VoiceApp-GoClient/1.0"
)

// Error messages.
const (
	errFmtMarshalRequest  = "failed to marshal request: %v"
	errFmtCreateRequest   = "failed to create request: %v"
	errFmtSendRequest     = "request to %s failed: %v"
	errFmtReadResponse    = "failed to read response from %s: %v"
	errFmtDecodeResponse  = "failed to decode response from %s: %v"
	errFmtStatus          = "%s returned %s"
	errFmtStatusDetail    = "%s returned %s: %s"
	errFmtResolveLocator  = "invalid audio locator %q: %v"
	errFmtDownloadStatus  = "download of %s failed with status %s"
	errFmtDownloadRequest = "download of %s failed: %v"
	errFmtDownloadWrite   = "failed to save %s: %v"
	errFmtBuildUpload     = "failed to build upload body: %v"
	filePermissions       = 0o600
)

// Multipart upload fields.
const (
	uploadFileField   = "audio_file"
	uploadTargetParam = "target_speaker"
	uploadPitchParam  = "preserve_pitch"
	dispositionFmt    = `form-data; name="%s"; filename="%s"`
	headerDisposition = "Content-Disposition"
	defaultUploadName = "audio"
	defaultUploadMIME = "application/octet-stream"
	maxErrorBodyBytes = 64 * 1024
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

var errRelativeLocator = errors.New("locator has no scheme and no leading slash")

// Client talks to the voice backend. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	metrics    *observe.Metrics
	baseURL    string
	userAgent  string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithMetrics records request metrics into m instead of the global instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client for the backend at baseURL, e.g.
// "http://localhost:8000". The timeout applies to every request; zero selects
// a default suited to slow synthesis calls.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.metrics == nil {
		client.metrics = observe.DefaultMetrics()
	}

	return client
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends a JSON request to endpoint and returns the raw JSON body. Default
// headers are always set; headers supplied by the caller are merged on top.
func (c *Client) Do(
	ctx context.Context,
	method, endpoint string,
	body any,
	headers http.Header,
) Result[json.RawMessage] {
	return c.do(ctx, endpoint, method, endpoint, body, headers)
}

// Health checks backend liveness and reports loaded models.
func (c *Client) Health(ctx context.Context) Result[HealthStatus] {
	return call[HealthStatus](ctx, c, EndpointHealth, http.MethodGet, EndpointHealth, nil)
}

// Synthesize converts text to speech.
func (c *Client) Synthesize(ctx context.Context, req TTSRequest) Result[OperationResult] {
	if strings.TrimSpace(req.Text) == "" {
		return Fail[OperationResult](Validation(ErrTextEmpty))
	}

	return call[OperationResult](ctx, c, EndpointTTS, http.MethodPost, EndpointTTS, req)
}

// Convert transforms base64 source audio into the target speaker's voice.
func (c *Client) Convert(ctx context.Context, req VCRequest) Result[OperationResult] {
	if req.SourceAudio == "" {
		return Fail[OperationResult](Validation(ErrNoSource))
	}

	if strings.TrimSpace(req.TargetSpeaker) == "" {
		return Fail[OperationResult](Validation(ErrNoTarget))
	}

	return call[OperationResult](ctx, c, EndpointVC, http.MethodPost, EndpointVC, req)
}

// UploadVC sends the source audio as a multipart file instead of base64 JSON.
func (c *Client) UploadVC(ctx context.Context, upload VCUpload) Result[OperationResult] {
	if upload.Audio == nil {
		return Fail[OperationResult](Validation(ErrNoSource))
	}

	if strings.TrimSpace(upload.TargetSpeaker) == "" {
		return Fail[OperationResult](Validation(ErrNoTarget))
	}

	body, contentType, err := upload.encode()
	if err != nil {
		return Fail[OperationResult](transportError(err, errFmtBuildUpload, err))
	}

	query := url.Values{}
	query.Set(uploadTargetParam, upload.TargetSpeaker)
	query.Set(uploadPitchParam, strconv.FormatBool(upload.PreservePitch))

	endpoint := EndpointVCUpload + "?" + query.Encode()

	start := time.Now()
	raw := c.exchange(ctx, http.MethodPost, endpoint, body, contentType, nil)
	c.record(ctx, EndpointVCUpload, start, raw.Err())

	return decode[OperationResult](endpoint, raw)
}

// Profiles fetches the complete speaker profile list.
func (c *Client) Profiles(ctx context.Context) Result[ProfileList] {
	return call[ProfileList](ctx, c, EndpointProfiles, http.MethodGet, EndpointProfiles, nil)
}

// Profile fetches a single speaker profile.
func (c *Client) Profile(ctx context.Context, id string) Result[SpeakerProfile] {
	if id == "" {
		return Fail[SpeakerProfile](Validation(ErrNoProfileID))
	}

	endpoint := EndpointProfiles + "/" + url.PathEscape(id)

	return call[SpeakerProfile](ctx, c, routeProfileByID, http.MethodGet, endpoint, nil)
}

// SubmitBatch starts a batch TTS job.
func (c *Client) SubmitBatch(ctx context.Context, req BatchTTSRequest) Result[BatchJob] {
	if len(req.Texts) == 0 {
		return Fail[BatchJob](Validation(ErrTextEmpty))
	}

	return call[BatchJob](ctx, c, EndpointBatchTTS, http.MethodPost, EndpointBatchTTS, req)
}

// BatchStatus fetches the current state of a batch job.
func (c *Client) BatchStatus(ctx context.Context, jobID string) Result[BatchJob] {
	if jobID == "" {
		return Fail[BatchJob](Validation(ErrNoJobID))
	}

	endpoint := EndpointBatchJobs + "/" + url.PathEscape(jobID)

	return call[BatchJob](ctx, c, routeBatchJobByID, http.MethodGet, endpoint, nil)
}

// Jobs lists every batch job the backend knows about.
func (c *Client) Jobs(ctx context.Context) Result[[]BatchJob] {
	return Then(
		call[JobList](ctx, c, EndpointBatchJobs, http.MethodGet, EndpointBatchJobs, nil),
		func(list JobList) Result[[]BatchJob] { return Ok(list.Jobs) },
	)
}

// ResolveURL maps an audio locator to a fetchable URL. Locators starting with
// "/" are relative to the base URL; anything else is used as-is.
func (c *Client) ResolveURL(locator string) string {
	if strings.HasPrefix(locator, "/") {
		return c.baseURL + locator
	}

	return locator
}

// Download fetches the audio at locator and streams it into dst, returning
// the number of bytes written.
func (c *Client) Download(ctx context.Context, locator string, dst io.Writer) Result[int64] {
	if locator == "" {
		return Fail[int64](&Error{Kind: KindDownload, Message: ErrNoLocator.Error(), Err: ErrNoLocator})
	}

	start := time.Now()
	result := c.download(ctx, locator, dst)
	c.record(ctx, routeDownload, start, result.Err())

	return result
}

// DownloadFile saves the audio at locator as dir/filename and returns the
// written path. The filename is sanitized before use.
func (c *Client) DownloadFile(ctx context.Context, locator, dir, filename string) Result[string] {
	ensureErr := fileutil.EnsureDir(dir)
	if ensureErr != nil {
		return Fail[string](downloadError(ensureErr, errFmtDownloadWrite, dir, ensureErr))
	}

	path := filepath.Join(dir, fileutil.SanitizeFilename(filename))

	// #nosec G304 -- path is built from a sanitized base name
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return Fail[string](downloadError(err, errFmtDownloadWrite, path, err))
	}

	written := c.Download(ctx, locator, file)
	closeErr := file.Close()

	if !written.OK() {
		_ = os.Remove(path)

		return Fail[string](written.Err())
	}

	if closeErr != nil {
		return Fail[string](downloadError(closeErr, errFmtDownloadWrite, path, closeErr))
	}

	return Ok(path)
}

func (c *Client) download(ctx context.Context, locator string, dst io.Writer) Result[int64] {
	target := c.ResolveURL(locator)

	parsed, err := url.Parse(target)
	if err == nil && parsed.Scheme == "" {
		err = errRelativeLocator
	}

	if err != nil {
		return Fail[int64](downloadError(err, errFmtResolveLocator, locator, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return Fail[int64](downloadError(err, errFmtDownloadRequest, target, err))
	}

	req.Header.Set(HeaderAccept, acceptAny)
	req.Header.Set(HeaderUserAgent, c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Fail[int64](downloadError(err, errFmtDownloadRequest, target, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := downloadError(nil, errFmtDownloadStatus, target, resp.Status)
		apiErr.Status = resp.StatusCode

		return Fail[int64](apiErr)
	}

	written, err := io.Copy(dst, resp.Body)
	if err != nil {
		return Fail[int64](downloadError(err, errFmtDownloadRequest, target, err))
	}

	return Ok(written)
}

// call performs a request and decodes the JSON body into T.
func call[T any](
	ctx context.Context,
	c *Client,
	route, method, endpoint string,
	body any,
) Result[T] {
	return decode[T](endpoint, c.do(ctx, route, method, endpoint, body, nil))
}

func decode[T any](endpoint string, raw Result[json.RawMessage]) Result[T] {
	return Then(raw, func(data json.RawMessage) Result[T] {
		var value T

		err := json.Unmarshal(data, &value)
		if err != nil {
			return Fail[T](transportError(err, errFmtDecodeResponse, endpoint, err))
		}

		return Ok(value)
	})
}

func (c *Client) do(
	ctx context.Context,
	route, method, endpoint string,
	body any,
	headers http.Header,
) Result[json.RawMessage] {
	start := time.Now()
	result := c.send(ctx, method, endpoint, body, headers)
	c.record(ctx, route, start, result.Err())

	return result
}

func (c *Client) send(
	ctx context.Context,
	method, endpoint string,
	body any,
	headers http.Header,
) Result[json.RawMessage] {
	reader := io.Reader(http.NoBody)

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return Fail[json.RawMessage](transportError(err, errFmtMarshalRequest, err))
		}

		reader = bytes.NewReader(payload)
	}

	return c.exchange(ctx, method, endpoint, reader, contentTypeJSON, headers)
}

func (c *Client) exchange(
	ctx context.Context,
	method, endpoint string,
	reader io.Reader,
	contentType string,
	headers http.Header,
) Result[json.RawMessage] {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return Fail[json.RawMessage](transportError(err, errFmtCreateRequest, err))
	}

	req.Header.Set(HeaderContentType, contentType)
	req.Header.Set(HeaderAccept, contentTypeJSON)
	req.Header.Set(HeaderUserAgent, c.userAgent)
	req.Header.Set(HeaderRequestID, uuid.NewString())

	for key, values := range headers {
		req.Header.Del(key)

		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Fail[json.RawMessage](transportError(err, errFmtSendRequest, endpoint, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Fail[json.RawMessage](parseErrorResponse(endpoint, resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Fail[json.RawMessage](transportError(err, errFmtReadResponse, endpoint, err))
	}

	var parsed errorBody
	if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
		return Fail[json.RawMessage](&Error{
			Kind:    KindApplication,
			Message: parsed.Error,
			Code:    parsed.Code,
			Status:  resp.StatusCode,
		})
	}

	return Ok(json.RawMessage(data))
}

// parseErrorResponse turns a non-2xx response into a transport error, keeping
// the backend's detail message and code when the body is structured JSON.
func parseErrorResponse(endpoint string, resp *http.Response) *Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	apiErr := &Error{
		Kind:    KindTransport,
		Status:  resp.StatusCode,
		Message: fmt.Sprintf(errFmtStatus, endpoint, resp.Status),
	}

	var body errorBody
	if json.Unmarshal(data, &body) == nil {
		if msg := body.message(); msg != "" {
			apiErr.Message = fmt.Sprintf(errFmtStatusDetail, endpoint, resp.Status, msg)
			apiErr.Code = body.Code

			return apiErr
		}
	}

	if text := strings.TrimSpace(string(data)); text != "" {
		apiErr.Message = fmt.Sprintf(errFmtStatusDetail, endpoint, resp.Status, text)
	}

	return apiErr
}

func (c *Client) record(ctx context.Context, route string, start time.Time, apiErr *Error) {
	kind := ""
	if apiErr != nil {
		kind = string(apiErr.Kind)
	}

	c.metrics.RecordRequest(context.WithoutCancel(ctx), route, time.Since(start), kind)
}

// encode writes the upload as a single-file multipart form.
func (u VCUpload) encode() (*bytes.Buffer, string, error) {
	name := u.FileName
	if name == "" {
		name = defaultUploadName
	}

	mimeType := u.MIMEType
	if mimeType == "" {
		mimeType = defaultUploadMIME
	}

	header := textproto.MIMEHeader{}
	header.Set(headerDisposition, fmt.Sprintf(dispositionFmt, uploadFileField, quoteEscaper.Replace(name)))
	header.Set(HeaderContentType, mimeType)

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}

	_, err = io.Copy(part, u.Audio)
	if err != nil {
		return nil, "", err
	}

	err = writer.Close()
	if err != nil {
		return nil, "", err
	}

	return &body, writer.FormDataContentType(), nil
}
