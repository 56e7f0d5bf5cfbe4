package player

import (
	"fmt"
	"io"

	"github.com/book-expert/voice-client/internal/fileutil"
	"github.com/book-expert/voice-client/internal/voiceapi"
)

// Labels used by ResultView.
const (
	labelDuration   = "Duration"
	labelProcessing = "Processing time"
	labelFileSize   = "File size"
	labelSampleRate = "Sample rate"
	labelSource     = "Audio"
	fmtRow          = "%-16s %s\n"
	fmtSampleRate   = "%d Hz"
	errFmtWriteView = "failed to write result: %w"
)

// ResultView is the rendered summary of an operation result.
type ResultView struct {
	Duration       string
	ProcessingTime string
	FileSize       string
	SampleRate     string
	SourceURL      string
}

// NewResultView renders result, resolving its audio locator with resolve.
// Fields the backend did not report are left empty.
func NewResultView(result voiceapi.OperationResult, resolve func(string) string) ResultView {
	view := ResultView{ProcessingTime: fileutil.FormatDuration(result.ProcessingTime)}

	if result.Duration != nil {
		view.Duration = fileutil.FormatDuration(*result.Duration)
	}

	if result.FileSize > 0 {
		view.FileSize = fileutil.FormatFileSize(result.FileSize)
	}

	if result.SampleRate > 0 {
		view.SampleRate = fmt.Sprintf(fmtSampleRate, result.SampleRate)
	}

	view.SourceURL = result.AudioURL
	if resolve != nil && result.AudioURL != "" {
		view.SourceURL = resolve(result.AudioURL)
	}

	return view
}

// Write prints the non-empty fields as aligned rows.
func (v ResultView) Write(w io.Writer) error {
	rows := [][2]string{
		{labelDuration, v.Duration},
		{labelProcessing, v.ProcessingTime},
		{labelFileSize, v.FileSize},
		{labelSampleRate, v.SampleRate},
		{labelSource, v.SourceURL},
	}

	for _, row := range rows {
		if row[1] == "" {
			continue
		}

		_, err := fmt.Fprintf(w, fmtRow, row[0]+":", row[1])
		if err != nil {
			return fmt.Errorf(errFmtWriteView, err)
		}
	}

	return nil
}
