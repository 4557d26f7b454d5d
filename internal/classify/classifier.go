// Package classify maps physical store entities to their canonical table
// names and caches the result as the dataset dictionary.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nmfs-ost/dismap/internal/docfile"
	"github.com/nmfs-ost/dismap/internal/domain"
)

// Control table listing the canonical table names.
const (
	ControlTable       = "Datasets"
	ControlTableColumn = "TableName"
)

// CanonicalName resolves entity against the known table names: an exact
// match, else the longest known name that is a proper prefix of entity, else
// entity itself.
func CanonicalName(entity string, tableNames []string) string {
	best := ""
	for _, name := range tableNames {
		if name == entity {
			return entity
		}
		if strings.HasPrefix(entity, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return entity
	}
	return best
}

// Classifier builds and caches the dataset dictionary of a store.
type Classifier struct {
	store     domain.Store
	cachePath string
	logger    *slog.Logger
}

// New creates a Classifier whose cache lives in csvDataDir.
func New(store domain.Store, csvDataDir string, logger *slog.Logger) *Classifier {
	return &Classifier{
		store:     store,
		cachePath: filepath.Join(csvDataDir, domain.DatasetDictionaryFile),
		logger:    logger,
	}
}

// CachePath returns the location of the dataset dictionary file.
func (c *Classifier) CachePath() string { return c.cachePath }

// Dictionary returns the dataset dictionary narrowed by filter. When the
// cache file exists it is returned as stored, even if the store has changed
// since; otherwise the store is walked and the cache written once.
func (c *Classifier) Dictionary(ctx context.Context, filter domain.DictionaryFilter) (domain.DatasetDictionary, error) {
	dict, err := c.load()
	if err != nil {
		return nil, err
	}
	if dict == nil {
		dict, err = c.build(ctx)
		if err != nil {
			return nil, err
		}
		if err := docfile.Write(c.cachePath, dict); err != nil {
			return nil, fmt.Errorf("write dataset dictionary: %w", err)
		}
		c.logger.Info("dataset dictionary written", "path", c.cachePath, "entities", len(dict))
	}
	return Filter(dict, filter), nil
}

// Invalidate removes the cache file so the next Dictionary call rebuilds it.
func (c *Classifier) Invalidate() error {
	if err := os.Remove(c.cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove dataset dictionary: %w", err)
	}
	return nil
}

// load returns nil, nil when no cache file exists.
func (c *Classifier) load() (domain.DatasetDictionary, error) {
	ok, err := docfile.Exists(c.cachePath)
	if err != nil || !ok {
		return nil, err
	}
	var dict domain.DatasetDictionary
	if err := docfile.Read(c.cachePath, &dict); err != nil {
		return nil, fmt.Errorf("load dataset dictionary: %w", err)
	}
	if dict == nil {
		dict = domain.DatasetDictionary{}
	}
	c.logger.Debug("dataset dictionary loaded from cache", "path", c.cachePath, "entities", len(dict))
	return dict, nil
}

func (c *Classifier) build(ctx context.Context) (domain.DatasetDictionary, error) {
	tableNames, err := c.tableNames(ctx)
	if err != nil {
		return nil, err
	}
	entities, err := c.store.Walk(ctx)
	if err != nil {
		return nil, fmt.Errorf("walk store: %w", err)
	}
	dict := make(domain.DatasetDictionary, len(entities))
	for _, e := range entities {
		dict[e.Name] = domain.Classification{
			DataType:      e.DataType,
			CanonicalName: CanonicalName(e.Name, tableNames),
		}
	}
	return dict, nil
}

// tableNames reads the canonical names from the control table. A missing or
// empty control table yields no names.
func (c *Classifier) tableNames(ctx context.Context) ([]string, error) {
	names, err := c.store.SearchColumn(ctx, ControlTable, ControlTableColumn)
	if err != nil {
		var missing *domain.MissingResourceError
		if errors.As(err, &missing) {
			c.logger.Warn("control table missing, every entity is its own canonical name",
				"table", ControlTable, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("read %s.%s: %w", ControlTable, ControlTableColumn, err)
	}
	if len(names) == 0 {
		c.logger.Warn("control table empty, every entity is its own canonical name", "table", ControlTable)
	}
	return names, nil
}

// Filter returns the entries of dict matching filter.
func Filter(dict domain.DatasetDictionary, filter domain.DictionaryFilter) domain.DatasetDictionary {
	if filter.DataType == "" && filter.Suffix == "" {
		return dict
	}
	out := make(domain.DatasetDictionary)
	for name, cls := range dict {
		if filter.DataType != "" && cls.DataType != filter.DataType {
			continue
		}
		if filter.Suffix != "" && !strings.HasSuffix(name, filter.Suffix) {
			continue
		}
		out[name] = cls
	}
	return out
}
