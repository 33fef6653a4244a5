package procscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePS_FiltersByCommandName(t *testing.T) {
	out := "  PID  %CPU COMM\n" +
		"  100   2.5 claude\n" +
		"  101   0.1 bash\n"
	pids := parsePS(out)
	assert.Equal(t, map[int]float64{100: 2.5}, pids)
}

func TestParseLsofCWD(t *testing.T) {
	out := "p100\nn/Users/me/projects/a\np101\nn/Users/me/projects/b\n"
	cwds := parseLsofCWD(out)
	assert.Equal(t, "/Users/me/projects/a", cwds[100])
	assert.Equal(t, "/Users/me/projects/b", cwds[101])
}

func TestParseChildren(t *testing.T) {
	out := " PID  PPID COMM\n" +
		" 200   100 caffeinate\n" +
		" 201   100 npm\n"
	children := parseChildren(out)
	assert.ElementsMatch(t, []string{"caffeinate", "npm"}, children[100])
}

func TestProjectDir_UnderOrgRoot(t *testing.T) {
	assert.Equal(t, "/Users/me/projects/repo", ProjectDir("/Users/me/projects/repo/apps/cli", "/Users/me/projects"))
}

func TestProjectDir_OutsideOrgRootFallsBackToBasename(t *testing.T) {
	assert.Equal(t, "somewhere", ProjectDir("/tmp/somewhere", "/Users/me/projects"))
}
