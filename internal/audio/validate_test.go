package audio_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/voice-client/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		file    audio.File
	}{
		{name: "wav", file: audio.File{MIMEType: "audio/wav", Size: 1024}},
		{name: "x-wav alias", file: audio.File{MIMEType: "audio/x-wav", Size: 1024}},
		{name: "mp3", file: audio.File{MIMEType: "audio/mpeg", Size: 1024}},
		{name: "ogg with codec", file: audio.File{MIMEType: "audio/ogg; codecs=opus", Size: 1024}},
		{name: "m4a", file: audio.File{MIMEType: "audio/x-m4a", Size: 1024}},
		{name: "flac", file: audio.File{MIMEType: "audio/flac", Size: 1024}},
		{name: "empty file is allowed", file: audio.File{MIMEType: "audio/wav", Size: 0}},
		{name: "exactly at limit", file: audio.File{MIMEType: "audio/wav", Size: audio.MaxFileSize}},
		{
			name:    "one byte over limit",
			file:    audio.File{MIMEType: "audio/wav", Size: audio.MaxFileSize + 1},
			wantErr: audio.ErrFileTooLarge,
		},
		{
			name:    "video",
			file:    audio.File{MIMEType: "video/mp4", Size: 1024},
			wantErr: audio.ErrUnsupportedFormat,
		},
		{
			name:    "aac not accepted",
			file:    audio.File{MIMEType: "audio/aac", Size: 1024},
			wantErr: audio.ErrUnsupportedFormat,
		},
		{
			name:    "missing type",
			file:    audio.File{Size: 1024},
			wantErr: audio.ErrUnsupportedFormat,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := audio.Validate(testCase.file)
			if testCase.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestValidate_MessageIsUserFacing(t *testing.T) {
	t.Parallel()

	err := audio.Validate(audio.File{MIMEType: "text/plain", Size: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wav, mp3, ogg, m4a, flac")

	err = audio.Validate(audio.File{MIMEType: "audio/wav", Size: 60 * 1024 * 1024})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "60.0 MB")
	assert.Contains(t, err.Error(), "50.0 MB")
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func wavHeader() []byte {
	header := []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00")
	header = append(header, []byte("\x22\x56\x00\x00\x44\xac\x00\x00\x02\x00\x10\x00data\x00\x00\x00\x00")...)

	return header
}

func TestInspect(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "speech.bin", wavHeader())

	file, err := audio.Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, "speech.bin", file.Name)
	assert.Equal(t, int64(len(wavHeader())), file.Size)

	format, ok := file.Format()
	require.True(t, ok, "sniffed type %q should be accepted", file.MIMEType)
	assert.Equal(t, audio.FormatWAV, format)
	require.NoError(t, audio.Validate(file))
}

func TestInspect_ExtensionFallback(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "take.ogg", make([]byte, 64))

	file, err := audio.Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, "audio/ogg", file.MIMEType)
}

func TestInspect_TextDisguisedAsAudio(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "fake.wav", []byte("this is just some text, not audio at all\n"))

	file, err := audio.Inspect(path)
	require.NoError(t, err)
	require.ErrorIs(t, audio.Validate(file), audio.ErrUnsupportedFormat)
}

func TestInspect_Errors(t *testing.T) {
	t.Parallel()

	_, err := audio.Inspect(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)

	_, err = audio.Inspect(t.TempDir())
	require.ErrorIs(t, err, audio.ErrNotRegularFile)
}

func TestFormatLookups(t *testing.T) {
	t.Parallel()

	format, ok := audio.FormatForExtension(".FLAC")
	require.True(t, ok)
	assert.Equal(t, audio.FormatFLAC, format)
	assert.Equal(t, ".flac", format.Extension())
	assert.Equal(t, "audio/flac", format.MIMEType())

	_, ok = audio.FormatForExtension("aac")
	assert.False(t, ok)

	format, ok = audio.FormatForMIME("AUDIO/MPEG")
	require.True(t, ok)
	assert.Equal(t, audio.FormatMP3, format)
}
