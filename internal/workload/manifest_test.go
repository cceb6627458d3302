package workload_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"selfprof/internal/workload"
)

const demoManifest = `
[package]
name = "demo"

[profile]
events = ["query-provider", "query-keys"]
dir = "profiles"
time_passes = true

[[item]]
name = "lex"
work = 2

[[item]]
name = "parse"
work = 3
deps = ["lex"]
`

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, workload.ManifestName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	m, err := workload.Load(writeManifest(t, dir, demoManifest))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Config.Package.Name != "demo" {
		t.Fatalf("package name = %q", m.Config.Package.Name)
	}
	want := []workload.ItemConfig{
		{Name: "lex", Work: 2},
		{Name: "parse", Work: 3, Deps: []string{"lex"}},
	}
	if diff := cmp.Diff(want, m.Config.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"query-provider", "query-keys"}, m.Config.Profile.Events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
	if !m.Config.Profile.TimePasses {
		t.Fatal("time_passes not decoded")
	}
	if got, want := m.ProfileDir(), filepath.Join(m.Root, "profiles"); got != want {
		t.Fatalf("ProfileDir = %q, want %q", got, want)
	}
}

func TestLoadRejectsInvalidManifests(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"no package":   {"[[item]]\nname = \"a\"\n", "missing [package]"},
		"no name":      {"[package]\n[[item]]\nname = \"a\"\n", "missing [package].name"},
		"no items":     {"[package]\nname = \"x\"\n", "no [[item]]"},
		"unnamed item": {"[package]\nname = \"x\"\n[[item]]\nwork = 1\n", "has no name"},
		"unknown key":  {"[package]\nname = \"x\"\ncolour = 1\n[[item]]\nname = \"a\"\n", "unknown key"},
		"bad toml":     {"[package\n", "failed to parse TOML"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := workload.Load(writeManifest(t, t.TempDir(), tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, demoManifest)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	path, ok, err := workload.Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find = %q, %v, %v", path, ok, err)
	}
	if path != filepath.Join(root, workload.ManifestName) {
		t.Fatalf("Find = %q", path)
	}
}
