package hg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.skia.org/infra/go/skerr"
	"go.skia.org/infra/go/sklog"

	"github.com/funfuzz/autobisect/go/revset"
)

// DefaultAncestryTimeout bounds one ancestry query against hg. A query that
// exceeds the budget is retried exactly once before failing.
const DefaultAncestryTimeout = 2 * time.Minute

// retryBackoff is the pause before the single permitted retry.
const retryBackoff = time.Second

// AncestryOracle answers ancestor/descendant questions against one checkout.
// The zero Timeout means DefaultAncestryTimeout.
type AncestryOracle struct {
	Checkout Checkout
	Timeout  time.Duration
}

// IsAncestorOrSelf returns true when a equals b, or when a is a strict
// ancestor of b. A revision unknown to the repository yields false, not an
// error: an ancestry question about a revision that does not exist has a
// well-defined answer. Process failures and a timeout that persists through
// the retry are returned as errors.
//
// The query evaluates "a and ancestor(a,b)": the greatest common ancestor of
// a and b equals a exactly when a is an ancestor of b, self included.
func (o AncestryOracle) IsAncestorOrSelf(ctx context.Context, a, b string) (bool, error) {
	sa, err := revset.Singleton(a)
	if err != nil {
		return false, skerr.Wrap(err)
	}
	sb, err := revset.Singleton(b)
	if err != nil {
		return false, skerr.Wrap(err)
	}
	query := revset.Intersection(sa, revset.CommonAncestor(sa, sb))

	timeout := o.Timeout
	if timeout == 0 {
		timeout = DefaultAncestryTimeout
	}

	var out string
	attempt := func() error {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		var runErr error
		out, runErr = o.Checkout.run(runCtx, timeout+5*time.Second,
			"log", "-r", query.String(), "--template", ShortNodeTemplate)
		if runErr == nil {
			return nil
		}
		if strings.Contains(out, unknownRevisionSentinel) {
			// hg aborts when a bare revision in the revset does not exist.
			// That is an answer, not a failure.
			out = ""
			return nil
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			sklog.Warningf("hg ancestry query for %s/%s exceeded %s; retrying", a, b, timeout)
			return runErr
		}
		return backoff.Permanent(skerr.Wrap(runErr))
	}
	err = backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(retryBackoff), 1), ctx))
	if err != nil {
		return false, skerr.Wrapf(err, "ancestry query %q", query.String())
	}
	return strings.TrimSpace(out) != "", nil
}

// IsAncestorOrSelf answers the ancestry question with the default timeout.
func (c Checkout) IsAncestorOrSelf(ctx context.Context, a, b string) (bool, error) {
	return AncestryOracle{Checkout: c}.IsAncestorOrSelf(ctx, a, b)
}
