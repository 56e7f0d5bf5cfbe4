// main package for the voice-worker
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voice-client/internal/config"
	"github.com/book-expert/voice-client/internal/objectstore"
	"github.com/book-expert/voice-client/internal/request"
	"github.com/book-expert/voice-client/internal/voiceapi"
	"github.com/book-expert/voice-client/internal/worker"
)

// Log file names.
const (
	bootstrapLogFileName = "voice-worker-bootstrap.log"
	logFileName          = "voice-worker.log"
)

// Error and log messages.
const (
	errFmtCreateLogger  = "failed to create logger %s: %w"
	errFmtLoadConfig    = "failed to load configuration: %w"
	errFmtFinalLogger   = "failed to create final logger: %w"
	errFmtConnectNATS   = "failed to connect to NATS at %s: %w"
	errFmtJetStream     = "failed to create JetStream context: %w"
	errFmtObjectStore   = "failed to open object store: %w"
	errFmtWorker        = "worker stopped with error: %w"
	logBootstrapCreated = "Bootstrap logger created."
	logConfigLoaded     = "Configuration loaded successfully."
	logFmtConfigFailed  = "Failed to load configuration: %v"
	logFmtStarted       = "Voice worker initialized. Backend: %s. Listening for jobs on subject: %s"
	logStopped          = "Voice worker stopped."
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf(errFmtCreateLogger, fileName, err)
	}

	return log, nil
}

func loadConfig() (*config.Config, error) {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return nil, err
	}

	defer func() { _ = bootstrapLog.Close() }()

	bootstrapLog.Info(logBootstrapCreated)

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error(logFmtConfigFailed, err)

		return nil, fmt.Errorf(errFmtLoadConfig, err)
	}

	bootstrapLog.Info(logConfigLoaded)

	return cfg, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	err = cfg.EnsureDirectories()
	if err != nil {
		return err
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return fmt.Errorf(errFmtFinalLogger, err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf(errFmtConnectNATS, cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf(errFmtJetStream, err)
	}

	texts, err := objectstore.New(jetstreamContext, cfg.NATS.TextObjectStoreBucket)
	if err != nil {
		return fmt.Errorf(errFmtObjectStore, err)
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf(errFmtObjectStore, err)
	}

	client := voiceapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout(), voiceapi.WithUserAgent(cfg.API.UserAgent))

	natsWorker := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.TextProcessedSubject,
		texts,
		audioStore,
		client,
		request.TTSOptions{},
		finalLog,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	finalLog.System(logFmtStarted, cfg.API.BaseURL, cfg.NATS.TextProcessedSubject)

	err = natsWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf(errFmtWorker, err)
	}

	finalLog.Info(logStopped)

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
