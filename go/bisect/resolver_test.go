package bisect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funfuzz/autobisect/go/facts"
)

const baselineRev = "bb868860dfc35876d2d9c421c037c75a4fb9b3d2"

func TestSearchSpace_GenericLinux(t *testing.T) {
	f := facts.New(facts.Linux, "x86_64", nil, facts.Options{})
	got, err := SearchSpace(f, nil, "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "first((descendants(id("+baselineRev+"))-("))
	assert.True(t, strings.HasSuffix(got, ")))"))

	// The generic Linux GCC-5 range is excluded from the search space.
	assert.Contains(t, got, "descendants(id(e94dceac8090))")
	// Ranges specific to aarch64 and to profiling builds are not.
	assert.NotContains(t, got, "e8bb22053e65")
	assert.NotContains(t, got, "aa1da5ed8a07")
}

func TestSearchSpace_WasmGCLowerBound(t *testing.T) {
	f := facts.New(facts.Linux, "x86_64", nil, facts.Options{})
	got, err := SearchSpace(f, []string{"--wasm-gc"}, "")
	require.NoError(t, err)
	assert.Contains(t, got,
		"descendants(id(302befe7689abad94a75f66ded82d5e71b558dc4)) and descendants(id("+baselineRev+"))")
}

func TestSearchSpace_WorkingRangeBoundsTheSpace(t *testing.T) {
	f := facts.New(facts.Linux, "x86_64", nil, facts.Options{})
	got, err := SearchSpace(f, nil, "0f8b7d3c2a1e")
	require.NoError(t, err)
	assert.Contains(t, got, "ancestors(id(0f8b7d3c2a1e))")
}

func TestSearchSpace_Idempotent(t *testing.T) {
	f := facts.New(facts.Linux, "aarch64", nil, facts.Options{Profiling: true})
	flags := []string{"--wasm-gc", "--no-streams"}
	first, err := SearchSpace(f, flags, "0f8b7d3c2a1e")
	require.NoError(t, err)
	second, err := SearchSpace(f, flags, "0f8b7d3c2a1e")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSearchSpace_InvalidWorkingRange(t *testing.T) {
	f := facts.New(facts.Linux, "x86_64", nil, facts.Options{})
	_, err := SearchSpace(f, nil, "not a rev")
	require.Error(t, err)
}

func TestSearchSpace_NoActiveSkips(t *testing.T) {
	// A platform matching none of the gated ranges still carries the
	// unconditional ones, so construct facts that dodge only the gated
	// ranges and verify the expression stays well-formed.
	f := facts.New("FreeBSD", "x86_64", nil, facts.Options{EnableDbg: true})
	got, err := SearchSpace(f, nil, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "first("))
	assert.Contains(t, got, "descendants(id(4c72627cfc6c))")
}
