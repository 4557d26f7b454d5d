// Package loader ingests one flat file into the structured store through a
// staging entity, then exports the result back to a flat file.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nmfs-ost/dismap/internal/config"
	"github.com/nmfs-ost/dismap/internal/domain"
	"github.com/nmfs-ost/dismap/internal/flatfile"
)

// Options configures a Loader.
type Options struct {
	// ExportDir receives the verification export <name>.csv.
	ExportDir string
	// Mode is config.LoadModeReplace (default) or config.LoadModeAppend.
	Mode string
}

// Loader loads flat files into a store. Definitions may be nil, in which case
// every target takes its field types from the sniffed source dtypes.
type Loader struct {
	store  domain.Store
	defs   *domain.Definitions
	opts   Options
	logger *slog.Logger
}

// New creates a Loader.
func New(store domain.Store, defs *domain.Definitions, opts Options, logger *slog.Logger) *Loader {
	if opts.Mode == "" {
		opts.Mode = config.LoadModeReplace
	}
	return &Loader{store: store, defs: defs, opts: opts, logger: logger}
}

// Summary describes a completed load.
type Summary struct {
	Entity        string        `json:"entity"`
	Source        string        `json:"source"`
	Encoding      string        `json:"encoding"`
	Rows          int           `json:"rows"`
	NullsRestored int64         `json:"nulls_restored"`
	ExportPath    string        `json:"export_path"`
	Aliases       int           `json:"aliases_applied"`
	Metadata      bool          `json:"metadata_imported"`
	Duration      time.Duration `json:"duration_ns"`
}

// EntityName derives the target entity name from a source file path.
func EntityName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// StagingName returns a fresh staging entity name for entity.
func StagingName(entity string) string {
	return fmt.Sprintf("%s_staging_%s", entity, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Load ingests the file at path. The operation is not transactional: once the
// staging entity exists, a failure returns a *domain.PartialWriteError naming
// it and the staging entity is left for the operator to clear.
func (l *Loader) Load(ctx context.Context, path string) (*Summary, error) {
	start := time.Now()
	name := EntityName(path)
	log := l.logger.With("entity", name, "source", path)

	profile, err := flatfile.Sniff(path)
	if err != nil {
		return nil, err
	}
	fields, fromDefs := l.targetFields(name, profile)
	log.Debug("target fields resolved", "fields", len(fields), "from_definitions", fromDefs, "encoding", profile.Encoding)

	if err := l.prepareTarget(ctx, name, fields); err != nil {
		return nil, err
	}

	batch, err := flatfile.ReadBatch(profile)
	if err != nil {
		return nil, err
	}
	cols, err := mapColumns(batch, fields)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if extra := unmappedColumns(batch, fields); len(extra) > 0 {
		log.Warn("source columns without a target field are dropped", "columns", extra)
	}

	rows, err := coerceBatch(name, batch, fields, cols)
	if err != nil {
		return nil, err
	}

	staging := StagingName(name)
	if err := l.store.CreateEntity(ctx, staging, stagingFields(fields)); err != nil {
		return nil, fmt.Errorf("create staging %s: %w", staging, err)
	}
	partial := func(err error) error {
		return &domain.PartialWriteError{Staging: staging, Cause: err}
	}

	if err := l.store.BulkLoad(ctx, staging, rows); err != nil {
		return nil, partial(fmt.Errorf("bulk load: %w", err))
	}

	var restored int64
	for _, f := range fields {
		if !f.Type.IsText() {
			continue
		}
		n, err := l.store.NullEmptyStrings(ctx, staging, f.Name)
		if err != nil {
			return nil, partial(fmt.Errorf("restore nulls in %s: %w", f.Name, err))
		}
		restored += n
	}

	if err := l.store.CopyRows(ctx, staging, name); err != nil {
		return nil, partial(fmt.Errorf("copy rows into %s: %w", name, err))
	}
	if err := l.store.DeleteEntity(ctx, staging); err != nil {
		return nil, partial(fmt.Errorf("delete staging: %w", err))
	}

	exportPath := filepath.Join(l.opts.ExportDir, name+".csv")
	if err := l.store.ExportCSV(ctx, name, exportPath); err != nil {
		return nil, fmt.Errorf("export %s: %w", name, err)
	}

	aliases, err := l.applyAliases(ctx, name, fields)
	if err != nil {
		return nil, err
	}
	imported, err := l.importMetadata(ctx, name, filepath.Join(filepath.Dir(path), name+".xml"))
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Entity:        name,
		Source:        path,
		Encoding:      profile.Encoding,
		Rows:          len(rows),
		NullsRestored: restored,
		ExportPath:    exportPath,
		Aliases:       aliases,
		Metadata:      imported,
		Duration:      time.Since(start),
	}
	log.Info("flat file loaded", "rows", sum.Rows, "nulls_restored", restored,
		"export", exportPath, "duration", sum.Duration)
	return sum, nil
}

// targetFields returns the definition fields for name when known, else the
// fields derived from the sniffed dtypes.
func (l *Loader) targetFields(name string, profile *flatfile.Profile) ([]domain.Field, bool) {
	if l.defs != nil {
		if fields, ok := l.defs.EntityFields(name); ok && len(fields) > 0 {
			return fields, true
		}
	}
	return profile.Fields(), false
}

// prepareTarget creates the empty target entity. In replace mode an existing
// entity is dropped first; in append mode it is kept as is.
func (l *Loader) prepareTarget(ctx context.Context, name string, fields []domain.Field) error {
	exists, err := l.store.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		if l.opts.Mode == config.LoadModeAppend {
			return nil
		}
		if err := l.store.DeleteEntity(ctx, name); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	if err := l.store.CreateEntity(ctx, name, fields); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	return nil
}

func (l *Loader) applyAliases(ctx context.Context, name string, fields []domain.Field) (int, error) {
	n := 0
	for _, f := range fields {
		if f.AliasName == "" || f.AliasName == f.Name {
			continue
		}
		if err := l.store.AlterFieldAlias(ctx, name, f.Name, f.AliasName); err != nil {
			return n, fmt.Errorf("alias %s.%s: %w", name, f.Name, err)
		}
		n++
	}
	return n, nil
}

func (l *Loader) importMetadata(ctx context.Context, name, path string) (bool, error) {
	md, ok, err := readMetadata(path)
	if err != nil {
		return false, err
	}
	if !ok || md.IsZero() {
		return false, nil
	}
	if err := l.store.ImportMetadata(ctx, name, md); err != nil {
		return false, fmt.Errorf("import metadata into %s: %w", name, err)
	}
	return true, nil
}

// mapColumns locates the batch column feeding each target field.
func mapColumns(batch *flatfile.SourceRecordBatch, fields []domain.Field) ([]int, error) {
	cols := make([]int, len(fields))
	for i, f := range fields {
		idx := batch.ColumnIndex(f.Name)
		if idx < 0 {
			return nil, domain.ErrValidation("source has no column for field %q", f.Name)
		}
		cols[i] = idx
	}
	return cols, nil
}

func unmappedColumns(batch *flatfile.SourceRecordBatch, fields []domain.Field) []string {
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Name] = struct{}{}
	}
	var out []string
	for _, c := range batch.Columns {
		if _, ok := known[c.Name]; !ok {
			out = append(out, c.Name)
		}
	}
	return out
}

// stagingFields relaxes every constraint so rows land before nulls are restored.
func stagingFields(fields []domain.Field) []domain.Field {
	out := make([]domain.Field, len(fields))
	for i, f := range fields {
		f.IsNullable = true
		f.DefaultValue = nil
		out[i] = f
	}
	return out
}
