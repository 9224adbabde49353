package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	Version, Commit = "1.2.0", "abc123"
	defer func() { Version, Commit = "dev", "unknown" }()

	got := Info()
	if !strings.HasPrefix(got, "detumbler 1.2.0 (commit abc123") {
		t.Fatalf("unexpected info %q", got)
	}
}
