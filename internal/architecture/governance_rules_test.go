package architecture_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/nmfs-ost/dismap"

type layerRule struct {
	sourcePrefix string
	forbidden    []string
	hint         string
}

func pkgs(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = modulePath + "/" + n
	}
	return out
}

// architectureRules is checked in order; the first matching prefix wins.
var architectureRules = []layerRule{
	{
		sourcePrefix: modulePath + "/internal/domain",
		forbidden: pkgs("internal/config", "internal/flatfile", "internal/docfile", "internal/store",
			"internal/classify", "internal/definitions", "internal/loader", "internal/reconcile",
			"internal/db", "internal/testutil", "pkg/cli", "cmd"),
		hint: "domain may only import domain",
	},
	{
		sourcePrefix: modulePath + "/internal/store",
		forbidden: pkgs("internal/config", "internal/flatfile", "internal/docfile", "internal/classify",
			"internal/definitions", "internal/loader", "internal/reconcile", "internal/db", "pkg/cli", "cmd"),
		hint: "store implements domain.Store and depends on domain only",
	},
	{
		sourcePrefix: modulePath + "/internal/flatfile",
		forbidden: pkgs("internal/config", "internal/store", "internal/docfile", "internal/classify",
			"internal/definitions", "internal/loader", "internal/reconcile", "internal/db", "pkg/cli", "cmd"),
		hint: "flatfile depends on domain only",
	},
	{
		sourcePrefix: modulePath + "/internal/docfile",
		forbidden: pkgs("internal/config", "internal/store", "internal/flatfile", "internal/classify",
			"internal/definitions", "internal/loader", "internal/reconcile", "internal/db", "pkg/cli", "cmd"),
		hint: "docfile depends on domain only",
	},
	{
		sourcePrefix: modulePath + "/internal/classify",
		forbidden: pkgs("internal/store", "internal/loader", "internal/reconcile", "internal/db", "pkg/cli", "cmd"),
		hint: "classify reaches the store through domain.Store",
	},
	{
		sourcePrefix: modulePath + "/internal/definitions",
		forbidden: pkgs("internal/store", "internal/loader", "internal/reconcile", "internal/db", "pkg/cli", "cmd"),
		hint: "definitions reaches the store through domain.Store",
	},
	{
		sourcePrefix: modulePath + "/internal/loader",
		forbidden: pkgs("internal/store", "internal/classify", "internal/definitions", "internal/reconcile",
			"internal/db", "pkg/cli", "cmd"),
		hint: "loader depends on domain, flatfile and config",
	},
	{
		sourcePrefix: modulePath + "/internal/reconcile",
		forbidden:    pkgs("internal/store", "internal/db", "pkg/cli", "cmd"),
		hint:         "reconcile receives the store and journal as domain ports",
	},
	{
		sourcePrefix: modulePath + "/internal/db",
		forbidden: pkgs("internal/store", "internal/flatfile", "internal/docfile", "internal/classify",
			"internal/definitions", "internal/loader", "internal/reconcile", "pkg/cli", "cmd"),
		hint: "db should depend on domain and db-local packages",
	},
}

func collectGoFiles(root string) ([]string, error) {
	files := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, filepath.ToSlash(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func repoRootDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func relToRepoRoot(path string) string {
	rel, err := filepath.Rel(repoRootDir(), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func packageImportPath(file string) string {
	return modulePath + "/" + filepath.ToSlash(filepath.Dir(relToRepoRoot(file)))
}

func findRule(sourcePkg string) (layerRule, bool) {
	for _, rule := range architectureRules {
		if hasPathPrefix(sourcePkg, rule.sourcePrefix) {
			return rule, true
		}
	}
	return layerRule{}, false
}

func violatesRule(importPath string, forbidden []string) bool {
	for _, prefix := range forbidden {
		if hasPathPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

func hasPathPrefix(value string, prefix string) bool {
	return value == prefix || strings.HasPrefix(value, prefix+"/")
}

func isTestFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), "_test.go")
}

// isTestHelper reports files that exist only to support other packages' tests.
func isTestHelper(path string) bool {
	return filepath.Base(path) == "testhelper.go" || strings.Contains(path, "/internal/testutil/")
}

func parseImports(t *testing.T, file string) []string {
	t.Helper()
	parsed, err := parser.ParseFile(token.NewFileSet(), file, nil, parser.ImportsOnly)
	require.NoErrorf(t, err, "parse imports for %s", file)

	out := make([]string, 0, len(parsed.Imports))
	for _, imp := range parsed.Imports {
		out = append(out, strings.Trim(imp.Path.Value, "\""))
	}
	return out
}
