package version

import (
	"strings"
	"testing"
	"time"
)

func withVars(t *testing.T, version, commit, branch, buildTime string) {
	t.Helper()
	v, c, b, bt := Version, GitCommit, GitBranch, BuildTime
	t.Cleanup(func() { Version, GitCommit, GitBranch, BuildTime = v, c, b, bt })
	Version, GitCommit, GitBranch, BuildTime = version, commit, branch, buildTime
}

func TestGet_LinkerValues(t *testing.T) {
	withVars(t, "1.0.0", "abc1234def", "main", "2024-01-15T10:30:00Z")

	info := Get()
	if info.Version != "1.0.0" || info.GitCommit != "abc1234def" || !info.Release {
		t.Fatalf("unexpected info %+v", info)
	}
	if want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC); !info.BuildTime.Equal(want) {
		t.Fatalf("build time %v", info.BuildTime)
	}
}

func TestGet_DevIsNotRelease(t *testing.T) {
	withVars(t, "dev", "", "", "")
	if Get().Release {
		t.Fatal("dev must not be a release")
	}
	withVars(t, "1.0.0-dirty", "", "", "")
	if Get().Release {
		t.Fatal("dirty must not be a release")
	}
}

func TestInfo_Short(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "dev"}, "dev"},
		{Info{Version: "1.2.0", GitCommit: "abc1234def"}, "1.2.0-abc1234"},
		{Info{Version: "1.2.0", GitCommit: "abc", Dirty: true}, "1.2.0-abc-dirty"},
	}
	for _, tt := range tests {
		if got := tt.info.Short(); got != tt.want {
			t.Errorf("Short() = %q, want %q", got, tt.want)
		}
	}
}

func TestInfo_Full(t *testing.T) {
	info := Info{
		Version:   "1.2.0",
		GitBranch: "feature/x",
		BuildTime: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	got := info.Full()
	if !strings.Contains(got, "(feature/x)") || !strings.HasSuffix(got, "built 2024-01-15T10:30:00Z") {
		t.Fatalf("Full() = %q", got)
	}
	info.GitBranch = "main"
	if strings.Contains(info.Full(), "main") {
		t.Fatalf("main branch should be omitted: %q", info.Full())
	}
}
