package tinyscript_test

import (
	"os"
	"path/filepath"
	"testing"

	"tinyscript"
)

// goldenScripts pairs each hand-authored testdata/*.tny fixture (mirroring
// spec.md's S1-S6 scenarios plus extra edge cases: array auto-grow and
// import splicing) with the entry symbol it expects to run clean under,
// end to end through CompileFile/Run, the way a host actually invokes
// TinyScript.
var goldenScripts = map[string]string{
	"00_helloworld.tny":        "HelloWorld.main",
	"01_variables.tny":         "T.main",
	"02_strings_and_bools.tny": "T.main",
	"03_loops.tny":             "T.main",
	"04_functions.tny":         "T.main",
	"05_classes.tny":           "T.main",
	"06_dictionary.tny":        "T.main",
	"07_fibonacci.tny":         "T.main",
	"08_arrays.tny":            "T.main",
	"10_imports.tny":           "T.main",
}

// libraryOnlyFixtures are spliced into an importing script rather than run
// directly, so they carry no entry point of their own.
var libraryOnlyFixtures = map[string]bool{
	"10_imports_lib.tny": true,
}

// TestGoldenScriptsCoverAllFixtures fails if a new testdata/*.tny fixture
// is added without being wired into goldenScripts or libraryOnlyFixtures,
// so the fixtures can't quietly go back to being unreferenced dead weight.
func TestGoldenScriptsCoverAllFixtures(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("testdata", "*.tny"))
	if err != nil {
		t.Fatalf("glob testdata/*.tny: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected at least one testdata/*.tny fixture")
	}
	for _, m := range matches {
		name := filepath.Base(m)
		if _, ok := goldenScripts[name]; ok {
			continue
		}
		if libraryOnlyFixtures[name] {
			continue
		}
		t.Errorf("testdata/%s is not referenced by goldenScripts or libraryOnlyFixtures", name)
	}
}

// TestGoldenScriptsRunCleanly compiles and runs every fixture in
// goldenScripts end to end via tinyscript.CompileFile/tinyscript.Run,
// exercising the S1-S6 scenarios (and the extra edge cases the later
// fixtures add) the way a host process actually would.
func TestGoldenScriptsRunCleanly(t *testing.T) {
	discard, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open %s: %v", os.DevNull, err)
	}
	defer discard.Close()

	for file, entry := range goldenScripts {
		file, entry := file, entry
		t.Run(file, func(t *testing.T) {
			path := filepath.Join("testdata", file)
			prog, err := tinyscript.CompileFile(path, []string{"testdata"})
			if err != nil {
				t.Fatalf("CompileFile(%s): %v", path, err)
			}
			result, err := tinyscript.Run(prog, tinyscript.RunOptions{
				EntryPoint: entry,
				Stdout:     discard,
			})
			if err != nil {
				t.Fatalf("Run(%s, %s): %v", path, entry, err)
			}
			if !result.IsNull() {
				t.Fatalf("Run(%s, %s): expected Null result, got %v", path, entry, result)
			}
		})
	}
}
