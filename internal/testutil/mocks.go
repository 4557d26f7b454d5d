// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"

	"github.com/nmfs-ost/dismap/internal/domain"
)

// === Store Mock ===

// MockStore implements domain.Store for testing. Methods without a hook
// panic, so a test only wires what it expects to be called.
type MockStore struct {
	PathValue          string
	WalkFn             func(ctx context.Context) ([]domain.Entity, error)
	ListFieldsFn       func(ctx context.Context, entity string) ([]domain.Field, error)
	ExistsFn           func(ctx context.Context, entity string) (bool, error)
	CreateEntityFn     func(ctx context.Context, entity string, fields []domain.Field) error
	DeleteEntityFn     func(ctx context.Context, entity string) error
	CopyRowsFn         func(ctx context.Context, src, dst string) error
	BulkLoadFn         func(ctx context.Context, entity string, rows [][]any) error
	NullEmptyStringsFn func(ctx context.Context, entity, field string) (int64, error)
	CountRowsFn        func(ctx context.Context, entity string) (int64, error)
	SearchColumnFn     func(ctx context.Context, entity, column string) ([]string, error)
	ExportCSVFn        func(ctx context.Context, entity, path string) error
	AlterFieldAliasFn  func(ctx context.Context, entity, field, alias string) error
	ImportMetadataFn   func(ctx context.Context, entity string, md domain.Metadata) error
	CompactFn          func(ctx context.Context) error

	mu    sync.Mutex
	Calls []string // method names in call order
}

var _ domain.Store = (*MockStore)(nil)

func (m *MockStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
}

// Called reports whether method was invoked at least once.
func (m *MockStore) Called(method string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Calls {
		if c == method {
			return true
		}
	}
	return false
}

// Path implements the interface method for testing.
func (m *MockStore) Path() string { return m.PathValue }

// Walk implements the interface method for testing.
func (m *MockStore) Walk(ctx context.Context) ([]domain.Entity, error) {
	m.record("Walk")
	if m.WalkFn != nil {
		return m.WalkFn(ctx)
	}
	panic("unexpected call to MockStore.Walk")
}

// ListFields implements the interface method for testing.
func (m *MockStore) ListFields(ctx context.Context, entity string) ([]domain.Field, error) {
	m.record("ListFields")
	if m.ListFieldsFn != nil {
		return m.ListFieldsFn(ctx, entity)
	}
	panic("unexpected call to MockStore.ListFields")
}

// Exists implements the interface method for testing.
func (m *MockStore) Exists(ctx context.Context, entity string) (bool, error) {
	m.record("Exists")
	if m.ExistsFn != nil {
		return m.ExistsFn(ctx, entity)
	}
	panic("unexpected call to MockStore.Exists")
}

// CreateEntity implements the interface method for testing.
func (m *MockStore) CreateEntity(ctx context.Context, entity string, fields []domain.Field) error {
	m.record("CreateEntity")
	if m.CreateEntityFn != nil {
		return m.CreateEntityFn(ctx, entity, fields)
	}
	panic("unexpected call to MockStore.CreateEntity")
}

// DeleteEntity implements the interface method for testing.
func (m *MockStore) DeleteEntity(ctx context.Context, entity string) error {
	m.record("DeleteEntity")
	if m.DeleteEntityFn != nil {
		return m.DeleteEntityFn(ctx, entity)
	}
	panic("unexpected call to MockStore.DeleteEntity")
}

// CopyRows implements the interface method for testing.
func (m *MockStore) CopyRows(ctx context.Context, src, dst string) error {
	m.record("CopyRows")
	if m.CopyRowsFn != nil {
		return m.CopyRowsFn(ctx, src, dst)
	}
	panic("unexpected call to MockStore.CopyRows")
}

// BulkLoad implements the interface method for testing.
func (m *MockStore) BulkLoad(ctx context.Context, entity string, rows [][]any) error {
	m.record("BulkLoad")
	if m.BulkLoadFn != nil {
		return m.BulkLoadFn(ctx, entity, rows)
	}
	panic("unexpected call to MockStore.BulkLoad")
}

// NullEmptyStrings implements the interface method for testing.
func (m *MockStore) NullEmptyStrings(ctx context.Context, entity, field string) (int64, error) {
	m.record("NullEmptyStrings")
	if m.NullEmptyStringsFn != nil {
		return m.NullEmptyStringsFn(ctx, entity, field)
	}
	panic("unexpected call to MockStore.NullEmptyStrings")
}

// CountRows implements the interface method for testing.
func (m *MockStore) CountRows(ctx context.Context, entity string) (int64, error) {
	m.record("CountRows")
	if m.CountRowsFn != nil {
		return m.CountRowsFn(ctx, entity)
	}
	panic("unexpected call to MockStore.CountRows")
}

// SearchColumn implements the interface method for testing.
func (m *MockStore) SearchColumn(ctx context.Context, entity, column string) ([]string, error) {
	m.record("SearchColumn")
	if m.SearchColumnFn != nil {
		return m.SearchColumnFn(ctx, entity, column)
	}
	panic("unexpected call to MockStore.SearchColumn")
}

// ExportCSV implements the interface method for testing.
func (m *MockStore) ExportCSV(ctx context.Context, entity, path string) error {
	m.record("ExportCSV")
	if m.ExportCSVFn != nil {
		return m.ExportCSVFn(ctx, entity, path)
	}
	panic("unexpected call to MockStore.ExportCSV")
}

// AlterFieldAlias implements the interface method for testing.
func (m *MockStore) AlterFieldAlias(ctx context.Context, entity, field, alias string) error {
	m.record("AlterFieldAlias")
	if m.AlterFieldAliasFn != nil {
		return m.AlterFieldAliasFn(ctx, entity, field, alias)
	}
	panic("unexpected call to MockStore.AlterFieldAlias")
}

// ImportMetadata implements the interface method for testing.
func (m *MockStore) ImportMetadata(ctx context.Context, entity string, md domain.Metadata) error {
	m.record("ImportMetadata")
	if m.ImportMetadataFn != nil {
		return m.ImportMetadataFn(ctx, entity, md)
	}
	panic("unexpected call to MockStore.ImportMetadata")
}

// Compact implements the interface method for testing.
func (m *MockStore) Compact(ctx context.Context) error {
	m.record("Compact")
	if m.CompactFn != nil {
		return m.CompactFn(ctx)
	}
	panic("unexpected call to MockStore.Compact")
}

// === Run Journal Mock ===

// MockRunJournal implements domain.RunJournal, collecting what it is given.
// A non-nil Err is returned from every call after recording.
type MockRunJournal struct {
	Err error

	mu            sync.Mutex
	Runs          []*domain.Run
	Steps         []domain.StepResult
	Discrepancies []domain.Discrepancy
	Finished      map[string]domain.ResultStatus
}

var _ domain.RunJournal = (*MockRunJournal)(nil)

// StartRun implements the interface method for testing.
func (m *MockRunJournal) StartRun(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs = append(m.Runs, run)
	return m.Err
}

// RecordStep implements the interface method for testing.
func (m *MockRunJournal) RecordStep(_ context.Context, _ string, step domain.StepResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Steps = append(m.Steps, step)
	return m.Err
}

// RecordDiscrepancies implements the interface method for testing.
func (m *MockRunJournal) RecordDiscrepancies(_ context.Context, _ string, ds []domain.Discrepancy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Discrepancies = append(m.Discrepancies, ds...)
	return m.Err
}

// FinishRun implements the interface method for testing.
func (m *MockRunJournal) FinishRun(_ context.Context, runID string, status domain.ResultStatus, _ *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Finished == nil {
		m.Finished = make(map[string]domain.ResultStatus)
	}
	m.Finished[runID] = status
	return m.Err
}
