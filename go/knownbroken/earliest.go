package knownbroken

import (
	"go.skia.org/infra/go/skerr"

	"github.com/funfuzz/autobisect/go/facts"
	"github.com/funfuzz/autobisect/go/revset"
)

// RequiredRevision names the first changeset that supports a shell feature.
// When the feature is in use, the search space must not reach back past it.
type RequiredRevision struct {
	Rev string
	// Seq is the changeset's sequence number on the integration branch. It
	// exists only to enforce table order and must never be compared across
	// clones.
	Seq int
	// Reason is a short note for log output.
	Reason string

	// matches reports whether the entry is required under the given facts.
	// nil marks the unconditional baseline.
	matches func(f facts.Facts) bool
}

// Matches returns whether this revision is required under the given facts.
func (r RequiredRevision) Matches(f facts.Facts) bool {
	return r.matches == nil || r.matches(f)
}

// requiredRevisions must be ordered from most recently introduced feature to
// least. If a later-introduced feature sat below an earlier one, bisection
// could narrow into a region where the later feature does not exist yet and
// blame the wrong changeset. The last entry is the unconditional baseline:
// the oldest shell this tool supports at all.
var requiredRevisions = []RequiredRevision{
	{
		Rev: "7a1ad6647c22bd34a6c70e67dc26e5b83f71cea4", Seq: 463705,
		Reason: "1st w/--enable-experimental-fields, bug 1529758",
		matches: func(f facts.Facts) bool {
			return f.HasFlag("--enable-experimental-fields")
		},
	},
	{
		Rev: "48dc14f79fb0a51ca796257a4179fe6f16b71b14", Seq: 455252,
		Reason: "1st w/--wasm-compiler=none and friends, bug 1509441",
		matches: func(f facts.Facts) bool {
			return f.HasAnyFlag("--wasm-compiler=none", "--wasm-compiler=baseline+ion",
				"--wasm-compiler=baseline", "--wasm-compiler=ion")
		},
	},
	{
		Rev: "450b8f0cbb4e494b399ebcf23a33b8d9cb883245", Seq: 453627,
		Reason: "1st w/--more-compartments, bug 1518753",
		matches: func(f facts.Facts) bool {
			return f.HasFlag("--more-compartments")
		},
	},
	{
		Rev: "c6a8b4d451afa922c4838bd202749c7e131cf05e", Seq: 442977,
		Reason: "1st w/ working --no-streams, bug 1501734",
		matches: func(f facts.Facts) bool {
			return f.HasFlag("--no-streams")
		},
	},
	{
		Rev: "577ffed9f102439db47afebcef95bbaaa2e04c93", Seq: 432608,
		Reason: "1st w/ working 32-bit Windows builds, bug 1483835",
		matches: func(f facts.Facts) bool {
			return f.OS == facts.Windows && f.Options.Enable32
		},
	},
	{
		Rev: "c085e1b32fb9bbdb00360bfb0a1057d20a752f4c", Seq: 419184,
		Reason: "1st w/ working Windows builds with a recent Win10 SDK, bug 1462616",
		matches: func(f facts.Facts) bool {
			return f.OS == facts.Windows
		},
	},
	{
		Rev: "302befe7689abad94a75f66ded82d5e71b558dc4", Seq: 413255,
		Reason: "1st w/--wasm-gc, bug 1445272",
		matches: func(f facts.Facts) bool {
			return f.HasFlag("--wasm-gc")
		},
	},
	{
		Rev: "321c29f4850882a2f0220a4dc041c53992c47992", Seq: 406115,
		Reason: "1st w/--nursery-strings=on, bug 903519",
		matches: func(f facts.Facts) bool {
			return f.HasAnyFlag("--nursery-strings=on", "--nursery-strings=off")
		},
	},
	{
		Rev: "a98f615965d73f6462924188fc2b1f2a620337bb", Seq: 399868,
		Reason: "1st w/--spectre-mitigations=on, bug 1430053",
		matches: func(f facts.Facts) bool {
			return f.HasAnyFlag("--spectre-mitigations=on", "--spectre-mitigations=off")
		},
	},
	{
		Rev: "b1dc87a94262c1bf2747d2bf560e21af5deb3174", Seq: 387188,
		Reason: "1st w/--test-wasm-await-tier2, bug 1388785",
		matches: func(f facts.Facts) bool {
			return f.HasFlag("--test-wasm-await-tier2")
		},
	},
	{
		Rev: "e2ecf684f49e9a6f6d072c289df68ef679968c4c", Seq: 383101,
		Reason: "1st w/ successful Xcode 9 builds, bug 1366564",
		matches: func(f facts.Facts) bool {
			return f.OS == facts.Darwin
		},
	},
	{
		Rev: "1b55231e6628e70f0c2ee2b2cb40a1e9861ac4b4", Seq: 380023,
		Reason: "1st w/--cpu-count=<NUM>, bug 1206770",
		matches: func(f facts.Facts) bool {
			return f.HasFlagPrefix("--cpu-count=")
		},
	},
	{
		Rev: "bb868860dfc35876d2d9c421c037c75a4fb9b3d2", Seq: 330353,
		Reason: "1st w/ revised template literals, bug 1317375",
	},
}

// validateRequired rejects any table whose entries are not strictly
// descending by sequence number, or whose baseline is missing or gated.
func validateRequired(table []RequiredRevision) error {
	if len(table) == 0 {
		return skerr.Fmt("required-revision table is empty")
	}
	last := table[len(table)-1]
	if last.matches != nil {
		return skerr.Fmt("required-revision table must end with the unconditional baseline; %s is gated", last.Rev)
	}
	for i := 1; i < len(table); i++ {
		if table[i].Seq >= table[i-1].Seq {
			return skerr.Fmt("required-revision table out of order: %s (%d) listed after %s (%d)",
				table[i].Rev, table[i].Seq, table[i-1].Rev, table[i-1].Seq)
		}
	}
	return nil
}

// Required returns the required revisions matching the given facts, in
// descending restrictiveness order. The unconditional baseline is always
// present, so the result is never empty.
func Required(f facts.Facts) ([]RequiredRevision, error) {
	if err := validateRequired(requiredRevisions); err != nil {
		return nil, skerr.Wrap(err)
	}
	var matched []RequiredRevision
	for _, r := range requiredRevisions {
		if r.Matches(f) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// LowerBoundExpr returns the search-space lower bound: the intersection of
// the descendant sets of every required revision. Intersection, rather than
// the latest single revision, is what stays correct when required fixes live
// on divergent branches.
func LowerBoundExpr(f facts.Facts) (revset.Expr, error) {
	matched, err := Required(f)
	if err != nil {
		return revset.Expr{}, skerr.Wrap(err)
	}
	exprs := make([]revset.Expr, 0, len(matched))
	for _, r := range matched {
		e, err := revset.DescendantsOf(r.Rev)
		if err != nil {
			return revset.Expr{}, skerr.Wrapf(err, "required revision %s", r.Rev)
		}
		exprs = append(exprs, e)
	}
	return revset.Intersection(exprs...), nil
}
