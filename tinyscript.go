// Package tinyscript is the host-facing entry point: compile a script to a
// Program and run it against the VM, wiring in the importer and DOMAIN
// STACK native bridges (hostdb, hostnet). This mirrors the reference
// implementation's own top-level convenience API shape (load, compile,
// run) while delegating every real piece of work to the internal packages.
package tinyscript

import (
	"context"
	"os"
	"time"

	"tinyscript/internal/bytecode"
	"tinyscript/internal/compiler"
	"tinyscript/internal/errors"
	"tinyscript/internal/hostdb"
	"tinyscript/internal/hostnet"
	"tinyscript/internal/importer"
	"tinyscript/internal/lexer"
	"tinyscript/internal/parser"
	"tinyscript/internal/value"
	"tinyscript/internal/vm"
)

// RunOptions configures a Run call: which function to invoke, what
// arguments to pass it, an optional cooperative-cancellation deadline
// (§5's AMBIENT addition), and an optional output file. Run does not read
// ImportSearchPath; imports are resolved by CompileFile's searchPath.
type RunOptions struct {
	EntryPoint       string
	Args             []value.Value
	ImportSearchPath []string
	Timeout          time.Duration
	Stdout           *os.File
}

// CompileFile resolves path's imports, parses, and compiles it into a
// Program, ready to pass to Run.
func CompileFile(path string, searchPath []string) (*bytecode.Program, error) {
	resolver := importer.NewResolver(searchPath)
	stmts, err := resolver.Resolve(path)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(stmts, path)
}

// Compile parses and compiles source with no import resolution, for
// callers that already have a self-contained script.
func Compile(source, fileName string) (*bytecode.Program, error) {
	toks := lexer.NewScanner(source).ScanTokens()
	stmts, err := parser.NewParserWithFile(toks, fileName).Parse()
	if err != nil {
		return nil, err
	}
	return compiler.Compile(stmts, fileName)
}

// Run executes prog's EntryPoint with the given RunOptions, with the
// hostdb and hostnet DOMAIN STACK bridges registered as native functions
// and torn down once the run completes.
func Run(prog *bytecode.Program, opts RunOptions) (value.Value, error) {
	if opts.EntryPoint == "" {
		return value.Value{}, errors.NewCompileError("RunOptions.EntryPoint is required")
	}

	m := vm.New(prog)
	if opts.Stdout != nil {
		m.Stdout = opts.Stdout
	}

	db := hostdb.NewBridge()
	defer db.CloseAll()
	db.Register(m.RegisterNative)

	net := hostnet.NewBridge()
	defer net.CloseAll()
	net.Register(m.RegisterNative)

	ctx := context.Background()
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	return m.Run(ctx, opts.EntryPoint, opts.Args)
}
