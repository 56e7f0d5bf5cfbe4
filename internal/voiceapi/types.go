package voiceapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Batch job statuses reported by the backend.
const (
	JobCreated    = "created"
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

const (
	errFmtDecodeProfileArray = "failed to decode profile array: %w"
	errFmtDecodeProfileList  = "failed to decode profile list: %w"
)

// HealthStatus is the body of GET /healthz.
type HealthStatus struct {
	Status       string   `json:"status"`
	Version      string   `json:"version"`
	ModelsLoaded []string `json:"models_loaded"`
	Uptime       float64  `json:"uptime"`
	GPUAvailable bool     `json:"gpu_available"`
}

// SpeakerProfile is a named voice usable for TTS or as a VC target. Profiles
// are owned by the backend and read-only here.
type SpeakerProfile struct {
	ID          string `json:"id"                     yaml:"id"`
	Name        string `json:"name"                   yaml:"name"`
	Language    string `json:"language"               yaml:"language"`
	Gender      string `json:"gender"                 yaml:"gender"`
	SampleAudio string `json:"sample_audio,omitempty" yaml:"sample_audio,omitempty"`
	Description string `json:"description"            yaml:"description"`
}

// ProfileList is the body of GET /api/v1/profiles.
type ProfileList struct {
	Profiles []SpeakerProfile `json:"profiles"`
	Total    int              `json:"total"`
}

// UnmarshalJSON accepts both the {profiles, total} envelope and a bare array.
func (p *ProfileList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var profiles []SpeakerProfile

		err := json.Unmarshal(trimmed, &profiles)
		if err != nil {
			return fmt.Errorf(errFmtDecodeProfileArray, err)
		}

		p.Profiles = profiles
		p.Total = len(profiles)

		return nil
	}

	type envelope ProfileList

	var env envelope

	err := json.Unmarshal(trimmed, &env)
	if err != nil {
		return fmt.Errorf(errFmtDecodeProfileList, err)
	}

	*p = ProfileList(env)
	if p.Total == 0 {
		p.Total = len(p.Profiles)
	}

	return nil
}

// TTSRequest is the body of POST /api/v1/tts.
type TTSRequest struct {
	Text      string  `json:"text"`
	SpeakerID string  `json:"speaker_id"`
	Language  string  `json:"language"`
	Speed     float64 `json:"speed"`
}

// VCRequest is the body of POST /api/v1/vc. PreservePitch is always sent.
type VCRequest struct {
	SourceAudio   string `json:"source_audio"`
	TargetSpeaker string `json:"target_speaker"`
	PreservePitch bool   `json:"preserve_pitch"`
}

// VCUpload is a VC request whose source audio travels as a multipart file
// to POST /api/v1/vc/upload.
type VCUpload struct {
	Audio         io.Reader
	FileName      string
	MIMEType      string
	TargetSpeaker string
	PreservePitch bool
}

// OperationResult is the success body of a TTS or VC call. Duration is only
// reported for TTS.
type OperationResult struct {
	Duration       *float64 `json:"duration,omitempty"`
	AudioURL       string   `json:"audio_url"`
	ProcessingTime float64  `json:"processing_time"`
	FileSize       int64    `json:"file_size,omitempty"`
	SampleRate     int      `json:"sample_rate,omitempty"`
}

// BatchTTSRequest is the body of POST /api/v1/batch/tts.
type BatchTTSRequest struct {
	Texts     []string `json:"texts"`
	SpeakerID string   `json:"speaker_id"`
	Language  string   `json:"language"`
	Speed     float64  `json:"speed"`
}

// BatchItem is the outcome of one text in a batch job.
type BatchItem struct {
	Text     string  `json:"text"                yaml:"text"`
	AudioURL string  `json:"audio_url,omitempty" yaml:"audio_url,omitempty"`
	Status   string  `json:"status"              yaml:"status"`
	Error    string  `json:"error,omitempty"     yaml:"error,omitempty"`
	Index    int     `json:"index"               yaml:"index"`
	Duration float64 `json:"duration,omitempty"  yaml:"duration,omitempty"`
}

// BatchJob describes a batch TTS job.
type BatchJob struct {
	JobID    string      `json:"job_id"   yaml:"job_id"`
	Status   string      `json:"status"   yaml:"status"`
	Results  []BatchItem `json:"results"  yaml:"results"`
	Progress float64     `json:"progress" yaml:"progress"`
}

// JobList is the body of GET /api/v1/batch/jobs.
type JobList struct {
	Jobs []BatchJob `json:"jobs"`
}

// Done reports whether the job reached a terminal status.
func (j BatchJob) Done() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// errorBody covers both the {error, code} and FastAPI {detail} failure shapes.
type errorBody struct {
	Error  string          `json:"error"`
	Code   string          `json:"code"`
	Detail json.RawMessage `json:"detail"`
}

func (b errorBody) message() string {
	if b.Error != "" {
		return b.Error
	}

	if len(b.Detail) == 0 {
		return ""
	}

	var detail string
	if json.Unmarshal(b.Detail, &detail) == nil {
		return detail
	}

	return string(b.Detail)
}
