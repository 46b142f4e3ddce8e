package language

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLookupC(t *testing.T) {
	lang, err := Lookup(0)
	if err != nil {
		t.Fatalf("lookup language 0: %v", err)
	}
	if lang.Name != "c" {
		t.Fatalf("language 0 name = %q, want c", lang.Name)
	}
	if lang.SourceFile != "main.c" || lang.BinaryFile != "main" {
		t.Fatalf("artifact contract broken: %+v", lang)
	}
	if lang.Run.Pathname != "./main" {
		t.Fatalf("run target %q must be the compiled artifact", lang.Run.Pathname)
	}
	// The compile target has to produce exactly the file the run target
	// executes, or compile-then-run falls apart.
	found := false
	for _, arg := range lang.Compile.Argv {
		if arg == lang.BinaryFile {
			found = true
		}
	}
	if !found {
		t.Fatalf("compile argv %v never names the binary %q", lang.Compile.Argv, lang.BinaryFile)
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup(99); err == nil {
		t.Fatal("expected an error for an unknown language id")
	}
}

func TestLoadOverridesBuiltin(t *testing.T) {
	original := builtins[0]
	t.Cleanup(func() { builtins[0] = original })

	path := filepath.Join(t.TempDir(), "c.yaml")
	profile := `version: "1"
language:
  id: 0
  name: c
  source_file: main.c
  binary_file: main
  compile:
    pathname: /usr/bin/cc
    argv: ["main.c", "-o", "main", "-O1"]
  run:
    pathname: ./main
`
	if err := os.WriteFile(path, []byte(profile), 0644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	lang, err := Load(path)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if lang.Compile.Pathname != "/usr/bin/cc" {
		t.Fatalf("override not applied: %+v", lang)
	}
	if got, _ := Lookup(0); got.Compile.Pathname != "/usr/bin/cc" {
		t.Fatalf("lookup still returns the builtin: %+v", got)
	}
}

func TestLoadRejectsIncompleteProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("language:\n  id: 5\n"), 0644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a profile without a name")
	}
}

func TestLoadDirSkipsForeignFiles(t *testing.T) {
	original := builtins[0]
	t.Cleanup(func() { builtins[0] = original })

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not yaml"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	profile := `language:
  id: 7
  name: fake
  run:
    pathname: ./fake
`
	if err := os.WriteFile(filepath.Join(dir, "fake.yaml"), []byte(profile), 0644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	t.Cleanup(func() { delete(builtins, 7) })

	if err := LoadDir(dir); err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if _, err := Lookup(7); err != nil {
		t.Fatalf("profile from dir not installed: %v", err)
	}
}
