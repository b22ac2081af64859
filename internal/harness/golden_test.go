package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScenarioGoldenTraces runs every scenario under testdata/scenarios and
// compares its canonical adapter-call trace against the committed golden
// file. Regenerate with: go test ./internal/harness -update
func TestScenarioGoldenTraces(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	h := testHarness()
	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, "loading %s", path)

		t.Run(scenario.Name, func(t *testing.T) {
			RunWithGolden(t, h, scenario)
		})
	}
}
