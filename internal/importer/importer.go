// Package importer resolves TinyScript's `import "path";` statements (§6):
// reading and parsing the referenced file and splicing its class
// declarations into the importing script's AST before compilation. The
// core only specifies that an import token is surfaced as an AST node;
// resolving it is host responsibility, grounded on the reference
// implementation's search-path + cache module loader (module.go), re-
// targeted at AST splicing instead of a runtime module/namespace object
// since TinyScript classes are flat globals with no import aliasing.
package importer

import (
	"fmt"
	"os"
	"path/filepath"

	"tinyscript/internal/errors"
	"tinyscript/internal/lexer"
	"tinyscript/internal/parser"
)

// Resolver loads and caches parsed files by resolved path, and detects
// import cycles across the whole resolution walk.
type Resolver struct {
	searchPath []string
	cache      map[string][]parser.Stmt
	visiting   map[string]bool
}

// NewResolver builds a Resolver that looks for imported files relative to
// the importing file's own directory first, then each entry of
// searchPath, mirroring the reference loader's "current dir, then search
// path" order.
func NewResolver(searchPath []string) *Resolver {
	return &Resolver{
		searchPath: searchPath,
		cache:      make(map[string][]parser.Stmt),
		visiting:   make(map[string]bool),
	}
}

// Resolve parses entryFile and returns a single flattened statement list
// with every transitively imported file's class declarations spliced in
// ahead of the entry file's own, each import statement itself dropped
// once resolved (§6: "the core does not define file resolution").
func (r *Resolver) Resolve(entryFile string) ([]parser.Stmt, error) {
	return r.load(entryFile)
}

func (r *Resolver) load(path string) ([]parser.Stmt, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if stmts, ok := r.cache[resolved]; ok {
		return stmts, nil
	}
	if r.visiting[resolved] {
		return nil, errors.NewCompileError("circular import: " + resolved)
	}
	r.visiting[resolved] = true
	defer delete(r.visiting, resolved)

	source, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read imported file %s: %w", path, err)
	}

	toks := lexer.NewScanner(string(source)).ScanTokens()
	stmts, err := parser.NewParserWithFile(toks, resolved).Parse()
	if err != nil {
		return nil, err
	}

	var out []parser.Stmt
	dir := filepath.Dir(resolved)
	for _, s := range stmts {
		imp, ok := s.(*parser.ImportStmt)
		if !ok {
			out = append(out, s)
			continue
		}
		depPath, err := r.find(imp.Path, dir)
		if err != nil {
			return nil, err
		}
		depStmts, err := r.load(depPath)
		if err != nil {
			return nil, err
		}
		out = append(out, depStmts...)
	}

	r.cache[resolved] = out
	return out, nil
}

// find locates an imported path: first relative to the importing file's
// own directory, then each entry of the configured search path, following
// the reference loader's getDefaultSearchPath precedence.
func (r *Resolver) find(name string, relativeTo string) (string, error) {
	candidates := []string{filepath.Join(relativeTo, name)}
	for _, dir := range r.searchPath {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("import not found: %s", name)
}
