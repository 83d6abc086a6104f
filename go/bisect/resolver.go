// Package bisect turns the static knowledge about broken and required
// changesets into the search space handed to the bisection driver.
package bisect

import (
	"go.skia.org/infra/go/skerr"

	"github.com/funfuzz/autobisect/go/facts"
	"github.com/funfuzz/autobisect/go/knownbroken"
	"github.com/funfuzz/autobisect/go/revset"
)

// SearchSpace resolves the valid candidate-revision search space for one
// run: the first revision of the set that descends from every required fix,
// sits within the working range if one is given, and lies outside every
// active known-broken range. The result is a serialized revset, ready for
// the bisection driver; resolution is pure and deterministic, so identical
// inputs always produce an identical expression.
//
// A failed resolution returns an error, never a narrower-than-correct
// expression: bisecting a wrong region would blame a wrong changeset.
func SearchSpace(f facts.Facts, flags []string, workingRange string) (string, error) {
	snapshot := facts.New(f.OS, f.Arch, flags, f.Options)

	lower, err := knownbroken.LowerBoundExpr(snapshot)
	if err != nil {
		return "", skerr.Wrap(err)
	}
	if workingRange != "" {
		upper, err := revset.AncestorsOf(workingRange)
		if err != nil {
			return "", skerr.Wrapf(err, "working-range revision")
		}
		lower = revset.Intersection(lower, upper)
	}
	skips, err := knownbroken.SkipExpr(snapshot)
	if err != nil {
		return "", skerr.Wrap(err)
	}

	space := lower
	if !skips.IsEmpty() {
		space = revset.Difference(lower, skips)
	}
	return revset.First(space).String(), nil
}
