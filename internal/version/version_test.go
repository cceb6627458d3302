package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestStyledWithoutColor(t *testing.T) {
	origNoColor := color.NoColor
	origVersion := Version
	color.NoColor = true
	defer func() {
		color.NoColor = origNoColor
		Version = origVersion
	}()

	for _, v := range []string{"0.1.0-dev", "1.2.3", "1.2.3-rc.1+build.123", "dev"} {
		Version = v
		if got := Styled(); got != v {
			t.Errorf("Styled() = %q, want %q", got, v)
		}
	}
}

func TestStyledColorsEachNumber(t *testing.T) {
	origNoColor := color.NoColor
	origVersion := Version
	color.NoColor = false
	defer func() {
		color.NoColor = origNoColor
		Version = origVersion
	}()

	Version = "1.2.3-dev"
	got := Styled()
	if got == Version {
		t.Fatal("expected escape sequences in styled version")
	}
	if got[len(got)-4:] != "-dev" {
		t.Fatalf("suffix lost: %q", got)
	}
}

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}
