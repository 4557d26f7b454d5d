package cli

import (
	"context"
	"log/slog"

	"github.com/nmfs-ost/dismap/internal/classify"
	"github.com/nmfs-ost/dismap/internal/config"
	internaldb "github.com/nmfs-ost/dismap/internal/db"
	"github.com/nmfs-ost/dismap/internal/db/repository"
	"github.com/nmfs-ost/dismap/internal/definitions"
	"github.com/nmfs-ost/dismap/internal/loader"
	"github.com/nmfs-ost/dismap/internal/reconcile"
	"github.com/nmfs-ost/dismap/internal/store"
)

// env is the state resolved by the root command before any subcommand runs.
type env struct {
	configPath string
	flags      config.Overrides
	output     string

	cfg    *config.Config
	logger *slog.Logger
}

// openStore validates the configuration and opens the existing store.
func (e *env) openStore(ctx context.Context) (*store.DuckStore, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	return store.Open(ctx, e.cfg.StorePath, true)
}

// openJournal returns nil when the journal is disabled. The returned close
// function is always safe to call.
func (e *env) openJournal() (*repository.RunRepo, func(), error) {
	if !e.cfg.JournalEnabled {
		return nil, func() {}, nil
	}
	db, err := internaldb.OpenJournal(e.cfg.JournalPath)
	if err != nil {
		return nil, func() {}, err
	}
	return repository.NewRunRepo(db), func() { _ = db.Close() }, nil
}

func (e *env) classifier(s *store.DuckStore) *classify.Classifier {
	return classify.New(s, e.cfg.CSVDataDir, e.logger)
}

func (e *env) builder(s *store.DuckStore) *definitions.Builder {
	return definitions.NewBuilder(s, e.cfg.CSVDataDir, e.logger)
}

func (e *env) loaderOptions() loader.Options {
	return loader.Options{ExportDir: e.cfg.ExportDir, Mode: e.cfg.LoadMode}
}

// driver wires a reconcile.Driver. A nil journal disables run recording.
func (e *env) driver(s *store.DuckStore, journal *repository.RunRepo) *reconcile.Driver {
	opts := reconcile.Options{
		ProjectFilter:   e.cfg.ProjectFilter,
		CompanionSuffix: e.cfg.CompanionSuffix,
		Loader:          e.loaderOptions(),
	}
	if journal == nil {
		return reconcile.New(s, e.classifier(s), e.builder(s), nil, opts, e.logger)
	}
	return reconcile.New(s, e.classifier(s), e.builder(s), journal, opts, e.logger)
}
