package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	if got, want := String(), "deadbolt "+Version; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if got := Verbose(); !strings.HasPrefix(got, "deadbolt ") || !strings.Contains(got, "go: ") {
		t.Fatalf("Verbose() = %q", got)
	}
	if Get().GoVersion == "" {
		t.Fatal("GoVersion empty")
	}
}
