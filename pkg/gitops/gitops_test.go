package gitops

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCoordinates(t *testing.T) {
	cases := map[string]Coordinates{
		"https://github.com/acme/widgets":     {Owner: "acme", Repo: "widgets"},
		"https://github.com/acme/widgets.git": {Owner: "acme", Repo: "widgets"},
		"git@github.com:acme/widgets.git":     {Owner: "acme", Repo: "widgets"},
	}
	for url, want := range cases {
		got, err := ParseCoordinates(url)
		if err != nil {
			t.Fatalf("parse %q: %v", url, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %v, want %v", url, got, want)
		}
	}
}

func TestParseCoordinatesMissing(t *testing.T) {
	for _, url := range []string{"", "   ", "not-a-url", "https://github.com/onlyowner"} {
		_, err := ParseCoordinates(url)
		var missing *MissingRepositoryCoordinatesError
		if !errors.As(err, &missing) {
			t.Fatalf("parse %q: expected missing coordinates error, got %v", url, err)
		}
	}
}

func TestMaterializeLocalCopiesTreeAndSkipsRuns(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "pkg"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "pkg", "main.go"), []byte("package main"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(src, ".repoflow", "runs", "old"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, ".repoflow", "runs", "old", "run.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	dest, cleanup, err := MaterializeLocal(src)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	defer cleanup()

	if _, err := os.Stat(filepath.Join(dest, "pkg", "main.go")); err != nil {
		t.Fatalf("expected copied file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, ".repoflow", "runs")); !os.IsNotExist(err) {
		t.Fatalf("run artifacts should be skipped, got %v", err)
	}
}
