//go:build integration

package integration

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nmfs-ost/dismap/internal/classify"
	"github.com/nmfs-ost/dismap/internal/config"
	internaldb "github.com/nmfs-ost/dismap/internal/db"
	"github.com/nmfs-ost/dismap/internal/db/repository"
	"github.com/nmfs-ost/dismap/internal/definitions"
	"github.com/nmfs-ost/dismap/internal/loader"
	"github.com/nmfs-ost/dismap/internal/reconcile"
	"github.com/nmfs-ost/dismap/internal/store"
)

// pipelineEnv is a file-backed store, run journal and driver sharing one
// project directory, laid out the way the CLI lays it out.
type pipelineEnv struct {
	dir     string
	csvDir  string
	store   *store.DuckStore
	journal *repository.RunRepo
	logger  *slog.Logger
}

func setupPipeline(t *testing.T, seed ...string) *pipelineEnv {
	t.Helper()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "DisMAP.gdb", "DisMAP.duckdb")

	s, err := store.Open(context.Background(), storePath, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	store.MustExec(t, s, seed...)

	jdb, err := internaldb.OpenJournal(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jdb.Close() })

	return &pipelineEnv{
		dir:     dir,
		csvDir:  filepath.Join(dir, "CSV Data"),
		store:   s,
		journal: repository.NewRunRepo(jdb),
		logger:  slog.New(slog.DiscardHandler),
	}
}

func (e *pipelineEnv) driver(mode string) *reconcile.Driver {
	return reconcile.New(e.store,
		classify.New(e.store, e.csvDir, e.logger),
		definitions.NewBuilder(e.store, e.csvDir, e.logger),
		e.journal,
		reconcile.Options{
			ProjectFilter:   config.DefaultProjectFilter,
			CompanionSuffix: config.DefaultCompanionSuffix,
			Loader: loader.Options{
				ExportDir: filepath.Join(e.csvDir, "Export"),
				Mode:      mode,
			},
		},
		e.logger,
	)
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func countWhere(t *testing.T, e *pipelineEnv, table, cond string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.store.DB().QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM "`+table+`" WHERE `+cond).Scan(&n))
	return n
}
