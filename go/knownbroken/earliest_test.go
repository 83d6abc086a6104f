package knownbroken

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funfuzz/autobisect/go/facts"
)

const baselineRev = "bb868860dfc35876d2d9c421c037c75a4fb9b3d2"

func revs(required []RequiredRevision) []string {
	out := make([]string, 0, len(required))
	for _, r := range required {
		out = append(out, r.Rev)
	}
	return out
}

func TestRequired_NeverEmpty(t *testing.T) {
	for _, f := range []facts.Facts{
		facts.New(facts.Linux, "x86_64", nil, facts.Options{}),
		facts.New(facts.Darwin, "x86_64", nil, facts.Options{}),
		facts.New(facts.Windows, "x86_64", nil, facts.Options{Enable32: true}),
		facts.New(facts.Linux, "aarch64", []string{"--no-such-flag"}, facts.Options{}),
	} {
		matched, err := Required(f)
		require.NoError(t, err)
		require.NotEmpty(t, matched)
		assert.Equal(t, baselineRev, matched[len(matched)-1].Rev)
	}
}

func TestRequired_WasmGC(t *testing.T) {
	f := facts.New(facts.Linux, "x86_64", []string{"--wasm-gc"}, facts.Options{})
	matched, err := Required(f)
	require.NoError(t, err)
	got := revs(matched)

	// The wasm-gc revision and the unconditional baseline, nothing between
	// them: every entry below wasm-gc in the table needs its own trigger.
	assert.Equal(t, []string{
		"302befe7689abad94a75f66ded82d5e71b558dc4",
		baselineRev,
	}, got)
}

func TestRequired_DescendingOrderPreserved(t *testing.T) {
	f := facts.New(facts.Windows, "x86_64",
		[]string{"--wasm-gc", "--no-streams", "--cpu-count=8"},
		facts.Options{Enable32: true})
	matched, err := Required(f)
	require.NoError(t, err)
	for i := 1; i < len(matched); i++ {
		assert.Greater(t, matched[i-1].Seq, matched[i].Seq)
	}
	assert.Equal(t, []string{
		"577ffed9f102439db47afebcef95bbaaa2e04c93", // 32-bit Windows
		"c085e1b32fb9bbdb00360bfb0a1057d20a752f4c", // Windows SDK
		"302befe7689abad94a75f66ded82d5e71b558dc4", // --wasm-gc
		"c6a8b4d451afa922c4838bd202749c7e131cf05e", // --no-streams
		"1b55231e6628e70f0c2ee2b2cb40a1e9861ac4b4", // --cpu-count=
		baselineRev,
	}, revs(matched))
}

func TestRequired_ValueCarryingFlags(t *testing.T) {
	f := facts.New(facts.Linux, "x86_64",
		[]string{"--cpu-count=3", "--spectre-mitigations=off", "--wasm-compiler=baseline"},
		facts.Options{})
	matched, err := Required(f)
	require.NoError(t, err)
	got := revs(matched)
	assert.Contains(t, got, "1b55231e6628e70f0c2ee2b2cb40a1e9861ac4b4")
	assert.Contains(t, got, "a98f615965d73f6462924188fc2b1f2a620337bb")
	assert.Contains(t, got, "48dc14f79fb0a51ca796257a4179fe6f16b71b14")
}

func TestValidateRequired(t *testing.T) {
	require.NoError(t, validateRequired(requiredRevisions))

	outOfOrder := []RequiredRevision{
		{Rev: "aaaa", Seq: 100, matches: func(facts.Facts) bool { return true }},
		{Rev: "bbbb", Seq: 200, matches: func(facts.Facts) bool { return true }},
		{Rev: "cccc", Seq: 50},
	}
	require.Error(t, validateRequired(outOfOrder))

	gatedBaseline := []RequiredRevision{
		{Rev: "aaaa", Seq: 100, matches: func(facts.Facts) bool { return true }},
		{Rev: "bbbb", Seq: 50, matches: func(facts.Facts) bool { return true }},
	}
	require.Error(t, validateRequired(gatedBaseline))

	require.Error(t, validateRequired(nil))
}

func TestLowerBoundExpr_IntersectionOfDescendants(t *testing.T) {
	f := facts.New(facts.Linux, "x86_64", []string{"--wasm-gc"}, facts.Options{})
	e, err := LowerBoundExpr(f)
	require.NoError(t, err)
	assert.Equal(t,
		"descendants(id(302befe7689abad94a75f66ded82d5e71b558dc4)) and descendants(id("+baselineRev+"))",
		e.String())
}

func TestLowerBoundExpr_BaselineOnly(t *testing.T) {
	f := facts.New(facts.Linux, "x86_64", nil, facts.Options{})
	e, err := LowerBoundExpr(f)
	require.NoError(t, err)
	assert.Equal(t, "descendants(id("+baselineRev+"))", e.String())
}
