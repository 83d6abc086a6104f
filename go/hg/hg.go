// Package hg is a thin wrapper around a local Mercurial checkout. Commands
// are run through the hg binary; queries are expressed as revsets (see the
// revset package) with log templates extracting the fields we need.
package hg

import (
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.skia.org/infra/go/exec"
	"go.skia.org/infra/go/skerr"
	"go.skia.org/infra/go/sklog"
)

const (
	// DefaultBranch is the canonical integration branch of a Mercurial repo.
	DefaultBranch = "default"

	// ShortNodeTemplate extracts the abbreviated hash of each revision.
	ShortNodeTemplate = "{node|short}"
	// PositionTemplate extracts the abbreviated hash and the clone-local
	// sequence number. The number is only meaningful within one clone.
	PositionTemplate = "{node|short} {rev}"

	// unknownRevisionSentinel appears in hg output when a revision named in
	// a revset does not exist. It is distinct from other abort messages.
	unknownRevisionSentinel = "abort: unknown revision"

	// defaultTimeout bounds a single hg invocation.
	defaultTimeout = 2 * time.Minute

	hgFinderKey contextKeyType = "HgPathFinder"
)

type contextKeyType string

// ErrUnknownRevision is returned when hg reports that a revision named in a
// query does not exist, from call sites whose contract requires it to exist.
var ErrUnknownRevision = errors.New("unknown revision")

var (
	hgVersionRegex = regexp.MustCompile(`Mercurial Distributed SCM \(version (\d+)\.(\d+)`)
	hgPath         = ""
	mtx            sync.Mutex // Protects hgPath.
)

// WithHgFinder overrides how Executable locates the hg binary. By default it
// looks on the PATH; tests inject a finder so no real hg is needed.
func WithHgFinder(ctx context.Context, finder func() (string, error)) context.Context {
	return context.WithValue(ctx, hgFinderKey, finder)
}

func findHgPath(ctx context.Context) (string, error) {
	path, err := osexec.LookPath("hg")
	return path, skerr.Wrap(err)
}

// Executable returns the path to the hg binary. A finder installed with
// WithHgFinder is consulted every time; the PATH lookup is cached.
func Executable(ctx context.Context) (string, error) {
	if finder, ok := ctx.Value(hgFinderKey).(func() (string, error)); ok {
		path, err := finder()
		return path, skerr.Wrap(err)
	}
	mtx.Lock()
	defer mtx.Unlock()
	if hgPath != "" {
		return hgPath, nil
	}
	path, err := findHgPath(ctx)
	if err != nil {
		return "", skerr.Wrapf(err, "Failed to find hg")
	}
	hgPath = path
	return hgPath, nil
}

// FindHg returns the path to the hg binary and the major and minor version
// numbers, or any error which occurred.
func FindHg(ctx context.Context) (string, int, int, error) {
	path, err := Executable(ctx)
	if err != nil {
		return "", 0, 0, skerr.Wrap(err)
	}
	maj, min, err := Version(ctx, path)
	if err != nil {
		return "", 0, 0, skerr.Wrapf(err, "Failed to obtain hg version")
	}
	sklog.Infof("Mercurial is %s; version %d.%d", path, maj, min)
	return path, maj, min, nil
}

// Version returns the installed Mercurial version as (major, minor), or an
// error if it could not be determined.
func Version(ctx context.Context, hg string) (int, int, error) {
	out, err := exec.RunCwd(ctx, ".", hg, "version")
	if err != nil {
		return -1, -1, skerr.Wrap(err)
	}
	m := hgVersionRegex.FindStringSubmatch(out)
	if len(m) != 3 {
		return -1, -1, skerr.Fmt("Failed to parse the hg version from output: %q", out)
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return -1, -1, skerr.Fmt("Failed to parse the hg version from output: %q", out)
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return -1, -1, skerr.Fmt("Failed to parse the hg version from output: %q", out)
	}
	return major, minor, nil
}

// MocksForFindHg returns a DelegateRun func which can be passed to
// exec.CommandCollector.SetDelegateRun so that FindHg succeeds when calls to
// exec are fully mocked out.
func MocksForFindHg(ctx context.Context, cmd *exec.Command) error {
	if strings.Contains(cmd.Name, "hg") && len(cmd.Args) == 1 && cmd.Args[0] == "version" {
		_, err := cmd.CombinedOutput.Write([]byte("Mercurial Distributed SCM (version 6.8.2)"))
		return err
	}
	return nil
}

// Checkout is a directory containing a Mercurial working copy.
type Checkout string

// Dir returns the working directory of the Checkout.
func (c Checkout) Dir() string {
	return string(c)
}

// Hg runs the given hg command against the Checkout with the default
// per-command timeout, returning combined output. Invalid bytes in the
// output are replaced rather than failing.
func (c Checkout) Hg(ctx context.Context, args ...string) (string, error) {
	return c.run(ctx, defaultTimeout, args...)
}

func (c Checkout) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	hgExec, err := Executable(ctx)
	if err != nil {
		return "", skerr.Wrap(err)
	}
	cmd := &exec.Command{
		Name:    hgExec,
		Args:    append([]string{"-R", c.Dir()}, args...),
		Timeout: timeout,
	}
	out, runErr := exec.RunCommand(ctx, cmd)
	out = replaceInvalidUTF8(out)
	if runErr != nil {
		return out, skerr.Wrapf(runErr, "hg %s failed; output:\n%s", strings.Join(args, " "), out)
	}
	return out, nil
}

// replaceInvalidUTF8 substitutes every invalid byte with U+FFFD. Unlike
// strings.ToValidUTF8, each bad byte yields its own replacement rune, so the
// output length reflects how much was garbled.
func replaceInvalidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

// LogTemplate runs "hg log -r <revSet> --template <template>" and returns
// the raw output. An empty result set yields empty output, not an error.
func (c Checkout) LogTemplate(ctx context.Context, revSet, template string) (string, error) {
	return c.Hg(ctx, "log", "-r", revSet, "--template", template)
}

// ResolveRevision resolves any revision expression hg accepts to an
// abbreviated hash. Returns ErrUnknownRevision if the revision does not
// exist.
func (c Checkout) ResolveRevision(ctx context.Context, rev string) (string, error) {
	out, err := c.LogTemplate(ctx, rev, ShortNodeTemplate)
	if err != nil {
		if strings.Contains(out, unknownRevisionSentinel) {
			return "", fmt.Errorf("%s: %w", rev, ErrUnknownRevision)
		}
		return "", skerr.Wrap(err)
	}
	hash := strings.TrimSpace(out)
	if hash == "" {
		return "", fmt.Errorf("%s: %w", rev, ErrUnknownRevision)
	}
	return hash, nil
}

// Update moves the working copy to the default branch tip.
func (c Checkout) Update(ctx context.Context) error {
	out, err := c.Hg(ctx, "update", DefaultBranch)
	if err != nil {
		return skerr.Wrapf(err, "failed to update to %s", DefaultBranch)
	}
	sklog.Debugf("hg update output:\n%s", out)
	return nil
}
