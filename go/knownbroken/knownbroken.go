// Package knownbroken holds the static tables driving regression-range
// resolution: changeset ranges known to produce unusable shells, and the
// earliest changesets required for each shell feature in use. The tables are
// data; the only behavior here is selecting entries against a facts snapshot
// and turning the selection into revset expressions.
package knownbroken

import (
	"go.skia.org/infra/go/skerr"

	"github.com/funfuzz/autobisect/go/facts"
	"github.com/funfuzz/autobisect/go/revset"
)

// BrokenRange is one known-broken region of history: every changeset
// descending from FirstBad but not from FirstGood. FirstBad is inside the
// range, FirstGood is not, and branches that never merged the fix stay
// excluded.
type BrokenRange struct {
	FirstBad  string
	FirstGood string
	// Reason is a short note for log output, typically the bug reference.
	Reason string

	// active reports whether the range applies under the given facts.
	// nil means the range always applies.
	active func(f facts.Facts) bool
}

// Expr returns the range as a revset difference of two descendant sets.
func (r BrokenRange) Expr() (revset.Expr, error) {
	bad, err := revset.DescendantsOf(r.FirstBad)
	if err != nil {
		return revset.Expr{}, skerr.Wrap(err)
	}
	good, err := revset.DescendantsOf(r.FirstGood)
	if err != nil {
		return revset.Expr{}, skerr.Wrap(err)
	}
	return revset.Difference(bad, good), nil
}

// Applies returns whether the range is active under the given facts.
func (r BrokenRange) Applies(f facts.Facts) bool {
	return r.active == nil || r.active(f)
}

// brokenRanges is the full table of known-broken shell ranges. Entries are
// append-only; an entry whose activation condition no longer matters is
// still kept so old revisions bisect the same way they always did.
var brokenRanges = []BrokenRange{
	{FirstBad: "4c72627cfc6c", FirstGood: "926f80f2c5cc", Reason: "Fx60, broken spidermonkey"},
	{FirstBad: "1fb7ddfad86d", FirstGood: "5202cfbf8d60", Reason: "Fx63, broken spidermonkey"},
	{FirstBad: "aae4f349fa58", FirstGood: "c5fbbf959e23", Reason: "Fx64, broken spidermonkey"},
	{FirstBad: "f611bc50d11c", FirstGood: "39d0c50a2209", Reason: "Fx66, broken spidermonkey"},
	{
		FirstBad: "3d0236f985f8", FirstGood: "32cef42080b1", Reason: "Fx68, bug 1544418",
		active: func(f facts.Facts) bool { return f.OS == facts.Darwin },
	},
	{
		// Failure specific to GCC 5 (and probably earlier), works on GCC 6.
		FirstBad: "e94dceac8090", FirstGood: "516c01f62d84", Reason: "Fx56-57, bug 1386011",
		active: func(f facts.Facts) bool { return f.OS == facts.Linux },
	},
	{
		FirstBad: "e8bb22053e65", FirstGood: "999757e9e5a5", Reason: "Fx54, bug 1336344",
		active: func(f facts.Facts) bool { return f.OS == facts.Linux && f.Arch == "aarch64" },
	},
	{
		// Month-long breakage of profiling builds, bypassed by building
		// with profiling disabled.
		FirstBad: "aa1da5ed8a07", FirstGood: "5a03382283ae", Reason: "Fx54-55, bug 1339190",
		active: func(f facts.Facts) bool { return f.OS == facts.Linux && f.Options.Profiling },
	},
	{
		FirstBad: "c5561749c1c6", FirstGood: "f4c15a88c937", Reason: "Fx58-59, broken opt builds w/ --enable-gczeal",
		active: func(f facts.Facts) bool { return !f.Options.EnableDbg },
	},
	{
		FirstBad: "247e265373eb", FirstGood: "e4aa68e2a85b", Reason: "Fx66, broken opt builds w/ --enable-gczeal",
		active: func(f facts.Facts) bool { return !f.Options.EnableDbg },
	},
	{
		FirstBad: "427b854cdb1c", FirstGood: "4c4e45853808", Reason: "Fx68, bug 1542980",
		active: func(f facts.Facts) bool { return f.Options.EnableMoreDeterministic },
	},
	{
		FirstBad: "284002382c21", FirstGood: "05669ce25b03", Reason: "Fx57-61, broken 32-bit ARM-simulator builds",
		active: func(f facts.Facts) bool { return f.Options.EnableSimulatorArm32 },
	},
}

// Ranges returns the broken ranges active under the given facts, in table
// order. Callers union the results; order carries no meaning.
func Ranges(f facts.Facts) []BrokenRange {
	var active []BrokenRange
	for _, r := range brokenRanges {
		if r.Applies(f) {
			active = append(active, r)
		}
	}
	return active
}

// SkipExpr returns the union of all active broken ranges, or the empty
// expression when none apply.
func SkipExpr(f facts.Facts) (revset.Expr, error) {
	ranges := Ranges(f)
	exprs := make([]revset.Expr, 0, len(ranges))
	for _, r := range ranges {
		e, err := r.Expr()
		if err != nil {
			return revset.Expr{}, skerr.Wrapf(err, "broken range %s:%s", r.FirstBad, r.FirstGood)
		}
		exprs = append(exprs, e)
	}
	return revset.Union(exprs...), nil
}
