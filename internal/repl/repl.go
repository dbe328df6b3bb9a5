// Package repl is TinyScript's interactive shell, adapted from the
// reference implementation's repl.go (scan-line, lex, parse, compile,
// run loop) but re-targeted at TinyScript's class-only top level: since a
// bare statement isn't legal script syntax, each submitted block is
// wrapped in a synthetic class/function and run as its own fresh
// program. There is no variable persistence across blocks — each block
// is an independent compile-and-run, the simplest faithful adaptation of
// a line-oriented REPL to a language with no top-level statements.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"tinyscript/internal/compiler"
	"tinyscript/internal/diag"
	"tinyscript/internal/lexer"
	"tinyscript/internal/parser"
	"tinyscript/internal/value"
	"tinyscript/internal/vm"
)

const wrapperClass = "__Repl__"
const wrapperFunc = "__run__"

// Session runs an interactive read-eval-print loop over in/out. The banner,
// results and error lines are all written to Out; Run does not write to Log.
type Session struct {
	In     io.Reader
	Out    io.Writer
	Log    *diag.Logger
	Prompt string
}

// NewSession returns a Session with the reference REPL's own banner/prompt
// text, renamed to TinyScript.
func NewSession(in io.Reader, out io.Writer, log *diag.Logger) *Session {
	return &Session{In: in, Out: out, Log: log, Prompt: ">>> "}
}

// Run reads blocks terminated by a blank line (or EOF) until the user
// types "exit", compiling and executing each block as a standalone
// program and printing its result.
func (s *Session) Run() {
	fmt.Fprintln(s.Out, "TinyScript REPL | type 'exit' to quit, blank line to run a block")
	scanner := bufio.NewScanner(s.In)

	for {
		fmt.Fprint(s.Out, s.Prompt)
		var lines []string
		eof := true
		for scanner.Scan() {
			eof = false
			line := scanner.Text()
			if len(lines) == 0 && strings.TrimSpace(line) == "exit" {
				return
			}
			if strings.TrimSpace(line) == "" {
				break
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			if eof {
				return
			}
			continue
		}

		if err := s.evalBlock(strings.Join(lines, "\n")); err != nil {
			fmt.Fprintln(s.Out, "error:", err)
		}
	}
}

// evalBlock wraps src's statements into a synthetic zero-arg function,
// compiles it alone, and runs it, printing whatever it returns (if not
// Null) the way an interactive shell echoes an expression's value.
func (s *Session) evalBlock(src string) error {
	fullSrc := "class " + wrapperClass + " { function " + wrapperFunc + "() {\n" + src + "\n} }"
	toks := lexer.NewScanner(fullSrc).ScanTokens()
	parsedStmts, perr := parser.NewParserWithFile(toks, "<repl>").Parse()
	if perr != nil {
		return perr
	}

	prog, cerr := compiler.Compile(parsedStmts, "<repl>")
	if cerr != nil {
		return cerr
	}

	m := vm.New(prog)
	m.Stdout = s.Out
	result, rerr := m.Run(context.Background(), wrapperClass+"."+wrapperFunc, nil)
	if rerr != nil {
		return rerr
	}
	if result.Kind() != value.KindNull {
		fmt.Fprintln(s.Out, "=>", result.String())
	}
	return nil
}
