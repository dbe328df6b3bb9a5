// cmd/tinyscript/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"tinyscript"
	"tinyscript/internal/diag"
	"tinyscript/internal/repl"
)

const version = "1.0.0"

var buildDate = time.Now().Format("2006-01-02")

// commandAliases mirrors the reference CLI's single-letter shortcuts,
// trimmed to the subset that still makes sense for a scripting core with
// no formatter/linter/debugger/LSP of its own.
var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"c": "compile",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		usage()
	case "--version", "-v", "version":
		fmt.Printf("tinyscript %s (built %s)\n", version, buildDate)
	case "run":
		runCommand(args[1:])
	case "compile":
		compileCommand(args[1:])
	case "repl":
		replCommand()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`tinyscript - run and inspect TinyScript programs

Usage:
  tinyscript run <file> [--entry Class.method] [--timeout 5s]
  tinyscript compile <file>
  tinyscript repl
  tinyscript --version
  tinyscript --help

Aliases: r=run, i=repl, c=compile`)
}

func runCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: tinyscript run <file> [--entry Class.method] [--timeout 5s]")
		os.Exit(1)
	}
	file := args[0]
	entry := "Main.main"
	var timeout time.Duration

	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--entry":
			i++
			if i < len(args) {
				entry = args[i]
			}
		case "--timeout":
			i++
			if i < len(args) {
				if d, err := time.ParseDuration(args[i]); err == nil {
					timeout = d
				}
			}
		}
	}

	log := diag.New(os.Stderr)
	start := time.Now()

	prog, err := tinyscript.CompileFile(file, []string{"."})
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile error:", err)
		os.Exit(1)
	}

	result, err := tinyscript.Run(prog, tinyscript.RunOptions{
		EntryPoint: entry,
		Timeout:    timeout,
		Stdout:     os.Stdout,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "runtime error:", err)
		os.Exit(1)
	}

	log.RunSummary(len(prog.Instructions), len(prog.Globals), time.Since(start))
	if !result.IsNull() {
		fmt.Println(result.String())
	}
}

func compileCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: tinyscript compile <file>")
		os.Exit(1)
	}
	log := diag.New(os.Stderr)
	prog, err := tinyscript.CompileFile(args[0], []string{"."})
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile error:", err)
		os.Exit(1)
	}
	log.ProgramSize(uint64(len(prog.Instructions) * 32))
	fmt.Printf("%d instructions, %d globals, %d symbols\n", len(prog.Instructions), len(prog.Globals), len(prog.Symbols))
}

func replCommand() {
	log := diag.New(os.Stderr)
	session := repl.NewSession(os.Stdin, os.Stdout, log)
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		session.Prompt = ""
	}
	session.Run()
}
