package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dasida/tutor/internal/config"
	"github.com/dasida/tutor/internal/dialogue"
	"github.com/dasida/tutor/internal/llm"
	"github.com/dasida/tutor/internal/logger"
	"github.com/dasida/tutor/internal/patterns"
	"github.com/dasida/tutor/internal/report"
	"github.com/dasida/tutor/internal/store"
	"github.com/dasida/tutor/internal/tutor"
)

// loadConfig reads --config and applies --db on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dsn, _ := cmd.Flags().GetString("db"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	return cfg, nil
}

// openStore opens the configured database, falling back to the local
// SQLite file.
func openStore(cfg *config.Config, log *logger.Logger) (*store.Store, error) {
	dsn := cfg.Database.DSN
	if dsn == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
		dsn = p
	}
	st, err := store.Open(dsn, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// services is everything the serve, chat and report commands share.
type services struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *store.Store
	provider llm.Provider
	tutor    *tutor.Controller
	reports  *report.Synthesizer
}

func (s *services) Close() {
	s.store.Close()
	s.log.Sync()
}

// buildServices loads config and wires store, provider, controller and
// synthesizer.
func buildServices(cmd *cobra.Command, logMode string) (*services, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logMode == "" {
		logMode = cfg.Log.Mode
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	st, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(cmd.Context(), cfg.LLM, st.Usage(), log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("LLM provider: %w", err)
	}

	extractor := patterns.NewExtractor(patterns.DefaultTable)
	return &services{
		cfg:      cfg,
		log:      log,
		store:    st,
		provider: provider,
		tutor:    tutor.NewController(st.Catalog(), st.Transcripts(), provider, dialogue.MustTagCodec(), cfg.TutorSettings(), log),
		reports:  report.NewSynthesizer(st.Transcripts(), st.Catalog(), provider, extractor, cfg.ReportSettings(), log),
	}, nil
}
