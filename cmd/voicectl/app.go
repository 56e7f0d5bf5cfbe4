package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-client/internal/config"
	"github.com/book-expert/voice-client/internal/profiles"
	"github.com/book-expert/voice-client/internal/session"
	"github.com/book-expert/voice-client/internal/voiceapi"
)

// File names.
const (
	logFileName          = "voicectl.log"
	bootstrapLogFileName = "voicectl-bootstrap.log"
)

// Error and log messages.
const (
	errFmtBootstrapLogger = "failed to create bootstrap logger: %w"
	errFmtLoadConfig      = "failed to load configuration: %w"
	errFmtInitLogger      = "failed to initialize logger: %w"
	errFmtCreateDirs      = "failed to create directories: %w"
	errFmtOperationFailed = "%s failed: %w"
	logFmtConfigFallback  = "No project configuration found, using defaults: %v"
	logFmtClientReady     = "voicectl initialized (backend: %s)"
	logFmtOperationFailed = "%s failed (%s): %v"
)

// app carries the state shared by every subcommand.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	client    *voiceapi.Client
	workspace *session.Workspace
	opts      globalOptions
}

// globalOptions are the persistent flags.
type globalOptions struct {
	configPath string
	baseURL    string
	timeout    int
}

// setup loads configuration, opens the log file and builds the client.
func (a *app) setup() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	if a.opts.baseURL != "" {
		cfg.API.BaseURL = a.opts.baseURL
	}

	if a.opts.timeout > 0 {
		cfg.API.TimeoutSeconds = a.opts.timeout
	}

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf(errFmtLoadConfig, err)
	}

	err = cfg.EnsureDirectories()
	if err != nil {
		return fmt.Errorf(errFmtCreateDirs, err)
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return fmt.Errorf(errFmtInitLogger, err)
	}

	a.cfg = cfg
	a.log = log
	a.client = voiceapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout(), voiceapi.WithUserAgent(cfg.API.UserAgent))
	a.workspace = session.NewWorkspace(a.client, profiles.NewDirectory(a.client, log))

	log.Info(logFmtClientReady, cfg.API.BaseURL)

	return nil
}

// loadConfig reads --config when given, otherwise asks the configurator and
// falls back to defaults when no project configuration exists.
func (a *app) loadConfig() (*config.Config, error) {
	if a.opts.configPath != "" {
		cfg, err := config.LoadFile(a.opts.configPath)
		if err != nil {
			return nil, fmt.Errorf(errFmtLoadConfig, err)
		}

		return cfg, nil
	}

	bootstrapLog, err := logger.New(os.TempDir(), bootstrapLogFileName)
	if err != nil {
		return nil, fmt.Errorf(errFmtBootstrapLogger, err)
	}

	defer func() { _ = bootstrapLog.Close() }()

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Warn(logFmtConfigFallback, err)

		return config.Default(), nil
	}

	return cfg, nil
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Close()
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// resultError converts a failed result into the error returned to cobra,
// logging it first.
func (a *app) resultError(operation string, apiErr *voiceapi.Error) error {
	if apiErr == nil {
		return nil
	}

	a.log.Error(logFmtOperationFailed, operation, apiErr.Kind, apiErr)

	return fmt.Errorf(errFmtOperationFailed, operation, apiErr)
}
