// Package definitions builds the field and table definition documents from a
// walk of the structured store.
package definitions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nmfs-ost/dismap/internal/docfile"
	"github.com/nmfs-ost/dismap/internal/domain"
)

// Builder walks a store and persists field_definitions.json and
// table_definitions.json into dir.
type Builder struct {
	store  domain.Store
	dir    string
	logger *slog.Logger
}

// NewBuilder creates a Builder writing into dir (the CSV Data directory).
func NewBuilder(store domain.Store, dir string, logger *slog.Logger) *Builder {
	return &Builder{store: store, dir: dir, logger: logger}
}

// Build walks every entity. A field name already present in the field
// definitions keeps its first-seen snapshot; later entities sharing the name
// never overwrite it.
func (b *Builder) Build(ctx context.Context) (*domain.Definitions, error) {
	entities, err := b.store.Walk(ctx)
	if err != nil {
		return nil, fmt.Errorf("walk store: %w", err)
	}

	defs := &domain.Definitions{
		Fields: make(domain.FieldDefinitions),
		Tables: make(domain.TableDefinitions, len(entities)),
	}
	for _, e := range entities {
		fields, err := b.store.ListFields(ctx, e.Name)
		if err != nil {
			return nil, fmt.Errorf("list fields of %q: %w", e.Name, err)
		}
		names := make([]string, 0, len(fields))
		for _, f := range domain.DefinitionFields(fields) {
			if _, ok := defs.Fields[f.Name]; !ok {
				defs.Fields[f.Name] = domain.NewFieldDefinition(f)
			} else {
				b.logger.Debug("field already defined, keeping first definition",
					"field", f.Name, "entity", e.Name)
			}
			names = append(names, f.Name)
		}
		defs.Tables[e.Name] = names
	}

	b.logger.Info("built definitions", "entities", len(defs.Tables), "fields", len(defs.Fields))
	return defs, nil
}

// Write persists both documents, overwriting earlier versions, then compacts
// the store.
func (b *Builder) Write(ctx context.Context, defs *domain.Definitions) error {
	if err := docfile.Write(filepath.Join(b.dir, domain.FieldDefinitionsFile), defs.Fields); err != nil {
		return err
	}
	if err := docfile.Write(filepath.Join(b.dir, domain.TableDefinitionsFile), defs.Tables); err != nil {
		return err
	}
	if err := b.store.Compact(ctx); err != nil {
		return err
	}
	return nil
}

// BuildAndWrite runs Build then Write.
func (b *Builder) BuildAndWrite(ctx context.Context) (*domain.Definitions, error) {
	defs, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.Write(ctx, defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// LoadOrBuild returns the persisted documents from the builder's directory,
// building and writing them first when either is absent.
func (b *Builder) LoadOrBuild(ctx context.Context) (*domain.Definitions, error) {
	defs, err := Load(b.dir)
	if err == nil {
		return defs, nil
	}
	var missing *domain.MissingResourceError
	if !errors.As(err, &missing) {
		return nil, err
	}
	b.logger.Info("definitions not found, building", "dir", b.dir)
	return b.BuildAndWrite(ctx)
}

// Load reads both definition documents from dir.
func Load(dir string) (*domain.Definitions, error) {
	defs := &domain.Definitions{}
	if err := docfile.Read(filepath.Join(dir, domain.FieldDefinitionsFile), &defs.Fields); err != nil {
		return nil, err
	}
	if err := docfile.Read(filepath.Join(dir, domain.TableDefinitionsFile), &defs.Tables); err != nil {
		return nil, err
	}
	return defs, nil
}
