package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/book-expert/voice-client/internal/audio"
	"github.com/book-expert/voice-client/internal/fileutil"
	"github.com/book-expert/voice-client/internal/player"
	"github.com/book-expert/voice-client/internal/profiles"
	"github.com/book-expert/voice-client/internal/request"
	"github.com/book-expert/voice-client/internal/synth"
	"github.com/book-expert/voice-client/internal/voiceapi"
)

// Flag names.
const (
	flagConfig       = "config"
	flagBaseURL      = "base-url"
	flagTimeout      = "timeout"
	flagSpeaker      = "speaker"
	flagLanguage     = "language"
	flagSpeed        = "speed"
	flagFile         = "file"
	flagOut          = "out"
	flagName         = "name"
	flagTarget       = "target"
	flagKeepPitch    = "keep-pitch"
	flagCheckSpeaker = "check-speaker"
	flagFormat       = "format"
	flagUpload       = "upload"
)

// Flag descriptions.
const (
	flagConfigDesc       = "Path to a project.toml (defaults to searching up the directory tree)"
	flagBaseURLDesc      = "Voice backend base URL (overrides configuration)"
	flagTimeoutDesc      = "Request timeout in seconds (overrides configuration)"
	flagSpeakerDesc      = "Speaker profile ID"
	flagLanguageDesc     = "Language code (zh, en, ja)"
	flagSpeedDesc        = "Speech speed between 0.5 and 2.0"
	flagFileDesc         = "Read the text from this file"
	flagOutDesc          = "Directory to save the produced audio in"
	flagNameDesc         = "File name for the saved audio (defaults to the backend's name)"
	flagTargetDesc       = "Target speaker profile ID"
	flagKeepPitchDesc    = "Preserve the source pitch"
	flagCheckSpeakerDesc = "Reject speakers missing from the profile list"
	flagUploadDesc       = "Send the recording as a multipart upload instead of base64 JSON"
	flagFormatDesc       = "Output format: table, json or yaml"
	flagBatchOutDesc     = "Directory for chunk_NNNN.wav files (defaults to paths.output_dir)"
)

// Output messages.
const (
	fmtHealthStatus  = "Status:  %s\nVersion: %s\nUptime:  %s\nGPU:     %t\nModels:  %s\n"
	fmtSaved         = "Saved: %s\n"
	fmtJobStatus     = "Job %s: %s (%.0f%%)\n"
	fmtJobItem       = "  [%d] %s %s\n"
	fmtBatchReport   = "Jobs: %s\nWritten: %d\nFailed: %d\nOutput: %s\n"
	errFmtReadText   = "failed to read text file: %w"
	errFmtInspect    = "failed to inspect %s: %w"
	errFmtBatch      = "batch failed: %w"
	errFmtSpeaker    = "%w: %q"
	defaultAudioName = "audio.wav"
	noneLabel        = "none"
)

// Operation names used in errors and logs.
const (
	opHealth   = "health check"
	opTTS      = "text-to-speech"
	opVC       = "voice conversion"
	opProfile  = "profile lookup"
	opJob      = "job status"
	opJobs     = "job listing"
	opDownload = "download"
)

var (
	errNoText   = errors.New("provide text as arguments or with --file")
	errBothText = errors.New("cannot use both text arguments and --file")
)

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "voicectl",
		Short:         "Command-line client for the voice backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configPath, flagConfig, "", flagConfigDesc)
	flags.StringVar(&a.opts.baseURL, flagBaseURL, "", flagBaseURLDesc)
	flags.IntVar(&a.opts.timeout, flagTimeout, 0, flagTimeoutDesc)

	root.AddCommand(
		newHealthCommand(a),
		newTTSCommand(a),
		newVCCommand(a),
		newProfilesCommand(a),
		newProfileCommand(a),
		newBatchCommand(a),
		newJobCommand(a),
		newJobsCommand(a),
		newDownloadCommand(a),
	)

	return root
}

func newHealthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check backend health and loaded models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			result := a.client.Health(ctx)
			if !result.OK() {
				return a.resultError(opHealth, result.Err())
			}

			health := result.Value()

			models := strings.Join(health.ModelsLoaded, ", ")
			if models == "" {
				models = noneLabel
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), fmtHealthStatus,
				health.Status, health.Version, fileutil.FormatDuration(health.Uptime), health.GPUAvailable, models)

			return err
		},
	}
}

// ttsOptions binds the shared TTS flags.
func ttsOptions(cmd *cobra.Command) *request.TTSOptions {
	opts := &request.TTSOptions{}
	cmd.Flags().StringVar(&opts.SpeakerID, flagSpeaker, request.DefaultSpeaker, flagSpeakerDesc)
	cmd.Flags().StringVar(&opts.Language, flagLanguage, request.DefaultLanguage, flagLanguageDesc)
	cmd.Flags().Float64Var(&opts.Speed, flagSpeed, request.DefaultSpeed, flagSpeedDesc)

	return opts
}

func newTTSCommand(a *app) *cobra.Command {
	var (
		textFile, outDir, name string
		check                  bool
	)

	cmd := &cobra.Command{
		Use:   "tts [text...]",
		Short: "Synthesize speech from text",
	}

	opts := ttsOptions(cmd)
	cmd.Flags().StringVar(&textFile, flagFile, "", flagFileDesc)
	cmd.Flags().StringVar(&outDir, flagOut, "", flagOutDesc)
	cmd.Flags().StringVar(&name, flagName, "", flagNameDesc)
	cmd.Flags().BoolVar(&check, flagCheckSpeaker, false, flagCheckSpeakerDesc)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		text, err := inputText(args, textFile)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		if check && !profiles.Contains(a.workspace.RefreshProfiles(ctx), opts.SpeakerID) {
			return voiceapi.Validation(fmt.Errorf(errFmtSpeaker, request.ErrUnknownSpeaker, opts.SpeakerID))
		}

		result := a.workspace.Synthesize(ctx, text, *opts)
		if !result.OK() {
			return a.resultError(opTTS, result.Err())
		}

		return a.present(cmd, result.Value(), a.workspace.TTSPlayer, outDir, name)
	}

	return cmd
}

func newVCCommand(a *app) *cobra.Command {
	var (
		target, outDir, name     string
		keepPitch, check, upload bool
	)

	cmd := &cobra.Command{
		Use:   "vc <audio-file>",
		Short: "Convert a recording to a target speaker's voice",
		Args:  cobra.ExactArgs(1),
	}

	cmd.Flags().StringVar(&target, flagTarget, "", flagTargetDesc)
	cmd.Flags().BoolVar(&keepPitch, flagKeepPitch, true, flagKeepPitchDesc)
	cmd.Flags().BoolVar(&check, flagCheckSpeaker, false, flagCheckSpeakerDesc)
	cmd.Flags().BoolVar(&upload, flagUpload, false, flagUploadDesc)
	cmd.Flags().StringVar(&outDir, flagOut, "", flagOutDesc)
	cmd.Flags().StringVar(&name, flagName, "", flagNameDesc)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		file, err := audio.Inspect(args[0])
		if err != nil {
			return fmt.Errorf(errFmtInspect, args[0], err)
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		opts := request.VCOptions{PreservePitch: &keepPitch}
		if check {
			opts.KnownSpeakers = profiles.IDs(a.workspace.RefreshProfiles(ctx))
		}

		convert := a.workspace.Convert
		if upload {
			convert = a.workspace.Upload
		}

		result := convert(ctx, &request.Source{File: file}, target, opts)
		if !result.OK() {
			return a.resultError(opVC, result.Err())
		}

		return a.present(cmd, result.Value(), a.workspace.VCPlayer, outDir, name)
	}

	return cmd
}

func newProfilesCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List speaker profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			return writeProfiles(cmd.OutOrStdout(), format, a.workspace.RefreshProfiles(ctx))
		},
	}

	cmd.Flags().StringVar(&format, flagFormat, formatTable, flagFormatDesc)

	return cmd
}

func newProfileCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "profile <id>",
		Short: "Show one speaker profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			result := a.client.Profile(ctx, args[0])
			if !result.OK() {
				return a.resultError(opProfile, result.Err())
			}

			return writeProfiles(cmd.OutOrStdout(), format, []voiceapi.SpeakerProfile{result.Value()})
		},
	}

	cmd.Flags().StringVar(&format, flagFormat, formatYAML, flagFormatDesc)

	return cmd
}

func newBatchCommand(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "batch <chunks.json|text-file>",
		Short: "Synthesize a chunk list or long text file as batch jobs",
		Args:  cobra.ExactArgs(1),
	}

	opts := ttsOptions(cmd)
	cmd.Flags().StringVar(&outDir, flagOut, "", flagBatchOutDesc)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if outDir == "" {
			outDir = a.cfg.Paths.OutputDir
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		engine := synth.NewEngine(a.client, a.cfg.Batch, a.log)

		report, err := engine.ProcessFile(ctx, args[0], outDir, *opts)

		jobs := strings.Join(report.JobIDs, ", ")
		if jobs == "" {
			jobs = noneLabel
		}

		_, writeErr := fmt.Fprintf(cmd.OutOrStdout(), fmtBatchReport, jobs, len(report.Written), report.Failed, outDir)
		if err != nil {
			return fmt.Errorf(errFmtBatch, err)
		}

		return writeErr
	}

	return cmd
}

func newJobCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "job <job-id>",
		Short: "Show the status of a batch job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			result := a.client.BatchStatus(ctx, args[0])
			if !result.OK() {
				return a.resultError(opJob, result.Err())
			}

			job := result.Value()
			out := cmd.OutOrStdout()

			_, err := fmt.Fprintf(out, fmtJobStatus, job.JobID, job.Status, job.Progress*100)
			for _, item := range job.Results {
				if err != nil {
					break
				}

				detail := item.AudioURL
				if item.Error != "" {
					detail = item.Error
				}

				_, err = fmt.Fprintf(out, fmtJobItem, item.Index, item.Status, detail)
			}

			return err
		},
	}
}

func newJobsCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List batch jobs known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			result := a.client.Jobs(ctx)
			if !result.OK() {
				return a.resultError(opJobs, result.Err())
			}

			return writeJobs(cmd.OutOrStdout(), format, result.Value())
		},
	}

	cmd.Flags().StringVar(&format, flagFormat, formatTable, flagFormatDesc)

	return cmd
}

func newDownloadCommand(a *app) *cobra.Command {
	var outDir, name string

	cmd := &cobra.Command{
		Use:   "download <audio-url>",
		Short: "Download produced audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = a.cfg.Paths.OutputDir
			}

			if name == "" {
				name = fileutil.FilenameFromLocator(args[0], defaultAudioName)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			result := a.client.DownloadFile(ctx, args[0], outDir, name)
			if !result.OK() {
				return a.resultError(opDownload, result.Err())
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), fmtSaved, result.Value())

			return err
		},
	}

	cmd.Flags().StringVar(&outDir, flagOut, "", flagOutDesc)
	cmd.Flags().StringVar(&name, flagName, "", flagNameDesc)

	return cmd
}

// present prints the result summary and, when outDir is set, saves the audio
// loaded into p.
func (a *app) present(cmd *cobra.Command, result voiceapi.OperationResult, p *player.Player, outDir, name string) error {
	out := cmd.OutOrStdout()

	err := player.NewResultView(result, a.client.ResolveURL).Write(out)
	if err != nil || outDir == "" {
		return err
	}

	if name == "" {
		name = fileutil.FilenameFromLocator(result.AudioURL, defaultAudioName)
	}

	saved := p.Download(cmd.Context(), a.client, outDir, name)
	if !saved.OK() {
		return a.resultError(opDownload, saved.Err())
	}

	_, err = fmt.Fprintf(out, fmtSaved, saved.Value())

	return err
}

// inputText reads the text from args or a file and cuts it to the
// request.MaxTextLength characters a TTS request accepts.
func inputText(args []string, textFile string) (string, error) {
	switch {
	case len(args) > 0 && textFile != "":
		return "", errBothText
	case textFile != "":
		// #nosec G304 -- the operator chose this input file
		data, err := os.ReadFile(textFile)
		if err != nil {
			return "", fmt.Errorf(errFmtReadText, err)
		}

		return request.TruncateInput(string(data)), nil
	case len(args) > 0:
		return request.TruncateInput(strings.Join(args, " ")), nil
	default:
		return "", errNoText
	}
}
