package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: sample
description: a joined child
steps:
  - mode: required
    children:
      - mode: required
        body: fail
        error: "nope"
        expect: "nope"
assertions:
  - type: no_open_handles
`))
	require.NoError(t, err)
	assert.Equal(t, "sample", s.Name)
	require.Len(t, s.Steps, 1)
	require.Len(t, s.Steps[0].Children, 1)
	assert.Equal(t, "fail", s.Steps[0].Children[0].Body)
	assert.True(t, s.Steps[0].Children[0].Awaited())
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
steps:
  - mode: required
    bdoy: fail
`))
	require.Error(t, err)
}

func TestParseScenario_AwaitFalse(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: fire_and_forget
steps:
  - mode: required
    children:
      - mode: required
        await: false
`))
	require.NoError(t, err)
	assert.False(t, s.Steps[0].Children[0].Awaited())
}

func TestScenarioValidate(t *testing.T) {
	base := func() *Scenario {
		return &Scenario{
			Name:  "ok",
			Steps: []Step{{Mode: "required"}},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		s := base()
		s.Name = ""
		assert.Error(t, s.Validate())
	})

	t.Run("no steps", func(t *testing.T) {
		s := base()
		s.Steps = nil
		assert.Error(t, s.Validate())
	})

	t.Run("unknown mode", func(t *testing.T) {
		s := base()
		s.Steps[0].Mode = "sometimes"
		assert.Error(t, s.Validate())
	})

	t.Run("unknown mode in child", func(t *testing.T) {
		s := base()
		s.Steps[0].Children = []Step{{Mode: "sometimes"}}
		assert.Error(t, s.Validate())
	})

	t.Run("unknown policy", func(t *testing.T) {
		s := base()
		s.Policy = "relaxed"
		assert.Error(t, s.Validate())
	})

	t.Run("invalid body", func(t *testing.T) {
		s := base()
		s.Steps[0].Body = "explode"
		assert.Error(t, s.Validate())
	})

	t.Run("invalid assertion", func(t *testing.T) {
		s := base()
		s.Assertions = []Assertion{{Type: "trace_count"}}
		assert.Error(t, s.Validate())
	})
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/does_not_exist.yaml")
	assert.Error(t, err)
}
