package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testManifest = `
[package]
name = "demo"

[[item]]
name = "lex"
work = 1

[[item]]
name = "parse"
work = 2
deps = ["lex"]

[[item]]
name = "check"
work = 1
deps = ["parse", "lex"]
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--color=off"}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "selfprof.toml")
	if err := os.WriteFile(path, []byte(testManifest), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runToProfile(t *testing.T, events string) string {
	t.Helper()
	manifest := writeTestManifest(t)
	profDir := t.TempDir()
	stdout, stderr, err := execute(t, "run", manifest,
		"--ui=off", "--no-cache",
		"--self-profile", "--self-profile-dir", profDir,
		"--self-profile-events", events,
	)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stdout, "demo: 3 items") {
		t.Fatalf("unexpected run output:\n%s", stdout)
	}
	matches, err := filepath.Glob(filepath.Join(profDir, "demo-*.selfprof"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("profile files = %v, %v", matches, err)
	}
	if !strings.Contains(stderr, matches[0]) {
		t.Fatalf("profile path not reported on stderr: %q", stderr)
	}
	return matches[0]
}

func TestRunWritesProfileAndDumpResolvesQueryKeys(t *testing.T) {
	profile := runToProfile(t, "all")

	stdout, _, err := execute(t, "dump", profile, "--format", "ndjson", "--kind", "Query")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 provider events, got %d:\n%s", len(lines), stdout)
	}
	labels := make(map[string]bool)
	for _, line := range lines {
		var ev struct {
			Kind  string `json:"kind"`
			Label string `json:"label"`
		}
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad ndjson line %q: %v", line, err)
		}
		labels[ev.Label] = true
	}
	for _, want := range []string{"check_item(lex)", "item_cost(parse)", "check_item(check)"} {
		if !labels[want] {
			t.Fatalf("label %q missing from %v", want, labels)
		}
	}
}

func TestRunDefaultEventsShareQueryNames(t *testing.T) {
	profile := runToProfile(t, "default")

	stdout, _, err := execute(t, "dump", profile, "--kind", "Query")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if strings.Contains(stdout, "(lex)") {
		t.Fatalf("query keys recorded without query-keys:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Query check_item") || !strings.Contains(stdout, "Query item_cost") {
		t.Fatalf("query names missing:\n%s", stdout)
	}

	stdout, _, err = execute(t, "summary", profile)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	for _, want := range []string{"KIND", "GenericActivity", "execute_workload", "check_item"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("summary missing %q:\n%s", want, stdout)
		}
	}
}

func TestRunRingModePrintsSummary(t *testing.T) {
	stdout, stderr, err := execute(t, "run", writeTestManifest(t),
		"--ui=off", "--no-cache",
		"--self-profile", "--self-profile-mode", "ring",
	)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stdout, "KIND") || !strings.Contains(stdout, "Query") {
		t.Fatalf("ring summary missing:\n%s", stdout)
	}
	if strings.Contains(stderr, "self-profile written") {
		t.Fatalf("ring mode must not write a file: %q", stderr)
	}
}

func TestRunTimePassesWithoutProfiler(t *testing.T) {
	stdout, _, err := execute(t, "run", writeTestManifest(t), "--ui=off", "--no-cache", "--time")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"\tbuild_graph\n", "\texecute_workload\n", "\tcheck_item(parse)\n"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("missing timing line %q:\n%s", want, stdout)
		}
	}
	if !strings.Contains(stdout, "time: ") {
		t.Fatalf("no time-passes lines:\n%s", stdout)
	}
}

func TestRunReusesIncrementalCache(t *testing.T) {
	manifest := writeTestManifest(t)
	cacheDir := t.TempDir()
	args := []string{"run", manifest, "--ui=off", "--cache-dir", cacheDir}

	if _, _, err := execute(t, args...); err != nil {
		t.Fatalf("first run: %v", err)
	}
	stdout, _, err := execute(t, args...)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(stdout, "0 computed, 3 loaded") {
		t.Fatalf("second run did not load from cache:\n%s", stdout)
	}
}

func TestRunTimingsSummary(t *testing.T) {
	stdout, _, err := execute(t, "run", writeTestManifest(t), "--ui=off", "--no-cache", "--timings")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"timings:", "load manifest", "build graph", "execute", "total"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("timings missing %q:\n%s", want, stdout)
		}
	}
}

func TestRunRejectsCycles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selfprof.toml")
	body := "[package]\nname = \"x\"\n[[item]]\nname = \"a\"\ndeps = [\"b\"]\n[[item]]\nname = \"b\"\ndeps = [\"a\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	_, _, err := execute(t, "run", path, "--ui=off", "--no-cache")
	if err == nil || !strings.Contains(err.Error(), "dependency cycle") {
		t.Fatalf("err = %v, want dependency cycle", err)
	}
}

func TestFiltersCommand(t *testing.T) {
	stdout, _, err := execute(t, "filters")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "query-keys") {
		t.Fatalf("filters output missing query-keys:\n%s", stdout)
	}
	if !strings.Contains(stdout, "default: generic-activity|query-provider|query-blocked|incr-cache-load") {
		t.Fatalf("default set missing:\n%s", stdout)
	}
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var payload versionPayload
	if err := json.Unmarshal([]byte(stdout), &payload); err != nil {
		t.Fatalf("bad json %q: %v", stdout, err)
	}
	if payload.Tool != "selfprof" || payload.Version == "" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestInvalidFlagValues(t *testing.T) {
	if _, _, err := execute(t, "--color=sometimes", "filters"); err == nil {
		t.Fatal("expected --color error")
	}
	if _, _, err := execute(t, "run", writeTestManifest(t), "--ui=maybe"); err == nil {
		t.Fatal("expected --ui error")
	}
	if _, _, err := execute(t, "dump", "x", "--format", "xml"); err == nil {
		t.Fatal("expected --format error")
	}
}

func TestParseProgressView(t *testing.T) {
	cases := map[string]progressView{
		"":      progressAuto,
		"AUTO":  progressAuto,
		"on":    progressOn,
		"tui":   progressOn,
		" off ": progressOff,
		"plain": progressOff,
	}
	for in, want := range cases {
		got, err := parseProgressView(in)
		if err != nil || got != want {
			t.Fatalf("parseProgressView(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := parseProgressView("fancy"); err == nil || !strings.Contains(err.Error(), "run --ui") {
		t.Fatalf("expected run --ui error, got %v", err)
	}
}

func TestProgressViewInteractive(t *testing.T) {
	var buf bytes.Buffer
	if progressAuto.interactive(&buf) {
		t.Fatal("auto mode must not draw on a non-terminal writer")
	}
	if !progressOn.interactive(&buf) || progressOff.interactive(&buf) {
		t.Fatal("explicit modes must win over terminal detection")
	}
}
