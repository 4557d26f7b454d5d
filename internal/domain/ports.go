package domain

import "context"

// Store is the structured-store collaborator. Implemented by store.DuckStore.
type Store interface {
	// Path returns the location of the store.
	Path() string
	// Walk lists every entity in the store, sorted by name. Fields are not populated.
	Walk(ctx context.Context) ([]Entity, error)
	// ListFields returns the fields of an entity in listing order.
	ListFields(ctx context.Context, entity string) ([]Field, error)
	Exists(ctx context.Context, entity string) (bool, error)
	CreateEntity(ctx context.Context, entity string, fields []Field) error
	DeleteEntity(ctx context.Context, entity string) error
	// CopyRows appends all rows of src into dst, matching columns by name.
	CopyRows(ctx context.Context, src, dst string) error
	// BulkLoad appends typed rows; each row holds one value per field, in field order.
	BulkLoad(ctx context.Context, entity string, rows [][]any) error
	// NullEmptyStrings rewrites empty strings in a text field to NULL.
	NullEmptyStrings(ctx context.Context, entity, field string) (int64, error)
	CountRows(ctx context.Context, entity string) (int64, error)
	// SearchColumn returns the distinct non-null values of column.
	SearchColumn(ctx context.Context, entity, column string) ([]string, error)
	ExportCSV(ctx context.Context, entity, path string) error
	AlterFieldAlias(ctx context.Context, entity, field, alias string) error
	ImportMetadata(ctx context.Context, entity string, md Metadata) error
	// Compact performs store-level housekeeping after bulk changes.
	Compact(ctx context.Context) error
}

// RunJournal records pipeline runs. Implemented by repository.RunRepo.
type RunJournal interface {
	StartRun(ctx context.Context, run *Run) error
	RecordStep(ctx context.Context, runID string, step StepResult) error
	RecordDiscrepancies(ctx context.Context, runID string, ds []Discrepancy) error
	FinishRun(ctx context.Context, runID string, status ResultStatus, errMsg *string) error
}
