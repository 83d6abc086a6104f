package hg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"go.skia.org/infra/go/skerr"
	"go.skia.org/infra/go/sklog"
	"gopkg.in/ini.v1"
)

// onDefaultRevset is non-empty exactly when the working copy parent sits on
// the default branch.
const onDefaultRevset = "parents() and " + DefaultBranch

// parentsRevset names the working copy parent regardless of branch.
const parentsRevset = "parents()"

var (
	// ErrAmbiguousCheckout is returned when the working copy is not on the
	// default branch and no decision about how to proceed is available.
	ErrAmbiguousCheckout = errors.New("checkout is not on the default branch")

	// ErrInvalidChoice is returned for an operator answer outside a/d/u.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrAborted is returned when the operator chose to abort. Callers
	// terminate cleanly; it is not a failure.
	ErrAborted = errors.New("aborted by operator")
)

// Position is the resolved location of the working copy.
type Position struct {
	// Hash is the abbreviated changeset hash.
	Hash string
	// LocalNum is the clone-local sequence number of the changeset. It is
	// never comparable across clones.
	LocalNum int
	// OnDefault reports whether the position sits on the default branch.
	OnDefault bool
}

// Action is a decision about a checkout that is not on the default branch.
type Action int

const (
	// Abort stops the run cleanly.
	Abort Action = iota
	// UpdateToDefault moves the working copy to the default branch first.
	UpdateToDefault
	// UseCurrent anchors the run at the current position.
	UseCurrent
)

// Operator answer codes.
const (
	AnswerAbort      = "a"
	AnswerUpdate     = "d"
	AnswerUseCurrent = "u"
)

// Decide maps an operator answer to an Action. It is pure: prompting and
// reading are the caller's concern.
func Decide(answer string) (Action, error) {
	switch strings.TrimSpace(answer) {
	case AnswerAbort:
		return Abort, nil
	case AnswerUpdate:
		return UpdateToDefault, nil
	case AnswerUseCurrent:
		return UseCurrent, nil
	default:
		return Abort, fmt.Errorf("%q: %w", answer, ErrInvalidChoice)
	}
}

// Decider supplies an Action when the checkout position is ambiguous.
type Decider func() (Action, error)

// PolicyDecider returns a Decider that always answers with the given Action,
// for non-interactive contexts.
func PolicyDecider(action Action) Decider {
	return func() (Action, error) {
		return action, nil
	}
}

// PromptDecider returns a Decider that asks the operator on out and reads a
// single answer from in.
func PromptDecider(in io.Reader, out io.Writer) Decider {
	return func() (Action, error) {
		if _, err := fmt.Fprint(out, "Not on default tip! Would you like to (a)bort, update to (d)efault, or (u)se this rev: "); err != nil {
			return Abort, skerr.Wrap(err)
		}
		answer, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return Abort, skerr.Wrap(err)
		}
		return Decide(answer)
	}
}

// ResolvePosition determines where the working copy sits. When the position
// is not on the default branch, decider is consulted; a nil decider makes
// that case an ErrAmbiguousCheckout. An Abort decision returns ErrAborted
// without issuing further hg commands.
func (c Checkout) ResolvePosition(ctx context.Context, decider Decider) (Position, error) {
	out, err := c.LogTemplate(ctx, onDefaultRevset, PositionTemplate)
	if err != nil {
		if strings.Contains(out, unknownRevisionSentinel) {
			return Position{}, fmt.Errorf("resolving position of %s: %w", c.Dir(), ErrUnknownRevision)
		}
		return Position{}, skerr.Wrap(err)
	}
	if strings.TrimSpace(out) != "" {
		return parsePosition(out, true)
	}

	if decider == nil {
		return Position{}, fmt.Errorf("%s: %w", c.Dir(), ErrAmbiguousCheckout)
	}
	action, err := decider()
	if err != nil {
		return Position{}, err
	}
	switch action {
	case Abort:
		sklog.Infof("Aborting at operator request.")
		return Position{}, ErrAborted
	case UpdateToDefault:
		if err := c.Update(ctx); err != nil {
			return Position{}, skerr.Wrap(err)
		}
		out, err := c.LogTemplate(ctx, onDefaultRevset, PositionTemplate)
		if err != nil {
			return Position{}, skerr.Wrap(err)
		}
		return parsePosition(out, true)
	case UseCurrent:
		out, err := c.LogTemplate(ctx, parentsRevset, PositionTemplate)
		if err != nil {
			return Position{}, skerr.Wrap(err)
		}
		return parsePosition(out, false)
	default:
		return Position{}, skerr.Fmt("unhandled action %d", action)
	}
}

func parsePosition(out string, onDefault bool) (Position, error) {
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return Position{}, skerr.Fmt("Failed to parse position from output: %q", out)
	}
	localNum, err := strconv.Atoi(fields[1])
	if err != nil {
		return Position{}, skerr.Fmt("Failed to parse local number from output: %q", out)
	}
	return Position{
		Hash:      fields[0],
		LocalNum:  localNum,
		OnDefault: onDefault,
	}, nil
}

// RepoName extracts the canonical short name of the remote this checkout was
// cloned from: the last path segment of the default entry in the hgrc paths
// section.
func (c Checkout) RepoName() (string, error) {
	hgrc := filepath.Join(c.Dir(), ".hg", "hgrc")
	cfg, err := ini.Load(hgrc)
	if err != nil {
		return "", skerr.Wrapf(err, "Failed to read %s", hgrc)
	}
	section, err := cfg.GetSection("paths")
	if err != nil {
		return "", skerr.Wrapf(err, "%s has no [paths] section", hgrc)
	}
	key, err := section.GetKey("default")
	if err != nil {
		return "", skerr.Wrapf(err, "%s has no default path", hgrc)
	}
	// Not all default entries end with "/".
	name := ""
	for _, part := range strings.Split(key.String(), "/") {
		if part != "" {
			name = part
		}
	}
	if name == "" {
		return "", skerr.Fmt("%s has an empty default path", hgrc)
	}
	return name, nil
}
