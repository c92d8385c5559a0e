package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thurmanmarka/nstaralign"
	"github.com/thurmanmarka/nstaralign/internal/config"
	"github.com/thurmanmarka/nstaralign/internal/logging"
	"github.com/thurmanmarka/nstaralign/internal/store"
)

// session is the state shared by every command: the loaded config, the
// alignment model populated from the store, and the logger.
type session struct {
	cfg     nstaralign.Config
	model   *nstaralign.Model
	store   *store.Store
	log     zerolog.Logger
	logFile *os.File
	out     *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openSession loads the config, opens the point store and fills a model
// with the stored points. Failures are reported through the formatter.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	s := &session{out: newFormatter(opts, cmd)}

	if err := config.Load(opts.ConfigDir); err != nil {
		return nil, s.out.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if opts.DB != "" {
		config.Set("db", opts.DB)
	}

	level := config.GetString("logLevel")
	if opts.Verbose {
		level = "debug"
	}
	logOpts := logging.Options{Level: level, JSON: opts.Format == "json"}
	if opts.Verbose {
		logOpts.Console = cmd.ErrOrStderr()
	}
	if dir := config.GetString("logsDir"); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, s.out.Fail(ExitCommandError, ErrCodeConfig, "failed to create logs directory", err)
		}
		f, err := os.OpenFile(logging.LogFilePath(dir, "nstar", time.Now()), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, s.out.Fail(ExitCommandError, ErrCodeConfig, "failed to open log file", err)
		}
		s.logFile = f
		logOpts.File = f
	}
	s.log = logging.New(logOpts)

	cfg, err := config.ModelConfig()
	if err != nil {
		s.close()
		return nil, s.out.Fail(ExitCommandError, ErrCodeConfig, "invalid alignment settings", err)
	}
	cfg.Logger = &s.log
	s.cfg = cfg

	s.model, err = nstaralign.New(cfg)
	if err != nil {
		s.close()
		return nil, s.out.Fail(ExitCommandError, ErrCodeConfig, "invalid alignment settings", err)
	}

	dbPath := config.GetString("db")
	if dbPath != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			s.close()
			return nil, s.out.Fail(ExitCommandError, ErrCodeStore, "failed to create database directory", err)
		}
	} else {
		dbPath = ""
	}
	s.store, err = store.Open(dbPath, s.log)
	if err != nil {
		s.close()
		return nil, s.out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}

	points, err := s.store.Load()
	if err != nil {
		s.close()
		return nil, s.out.Fail(ExitCommandError, ErrCodeStore, "failed to load alignment points", err)
	}
	for _, p := range points {
		s.model.AddPoint(p)
	}
	s.out.VerboseLog("Loaded %d alignment point(s) from %s", len(points), displayPath(s.store.Path()))

	return s, nil
}

// save writes the model's points back to the store.
func (s *session) save() error {
	if err := s.store.Save(s.model.Points()); err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeStore, "failed to save alignment points", err)
	}
	return nil
}

func (s *session) close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warn().Err(err).Msg("closing database")
		}
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

// newModel returns an empty, unlogged model with the session's
// configuration.
func (s *session) newModel() (*nstaralign.Model, error) {
	cfg := s.cfg
	cfg.Logger = nil
	return nstaralign.New(cfg)
}

func displayPath(p string) string {
	if p == "" {
		return "memory"
	}
	return p
}
