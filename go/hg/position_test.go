package hg

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.skia.org/infra/go/exec"
)

func TestDecide(t *testing.T) {
	action, err := Decide("a")
	require.NoError(t, err)
	assert.Equal(t, Abort, action)

	action, err = Decide("d\n")
	require.NoError(t, err)
	assert.Equal(t, UpdateToDefault, action)

	action, err = Decide(" u ")
	require.NoError(t, err)
	assert.Equal(t, UseCurrent, action)

	for _, bad := range []string{"", "x", "abort", "ad"} {
		_, err := Decide(bad)
		require.ErrorIs(t, err, ErrInvalidChoice, "Decide(%q)", bad)
	}
}

func TestPromptDecider(t *testing.T) {
	out := bytes.Buffer{}
	decider := PromptDecider(strings.NewReader("d\n"), &out)
	action, err := decider()
	require.NoError(t, err)
	assert.Equal(t, UpdateToDefault, action)
	assert.Contains(t, out.String(), "Not on default tip!")
}

func TestResolvePosition_OnDefault(t *testing.T) {
	ctx, collector := testContext(func(ctx context.Context, cmd *exec.Command) error {
		_, err := cmd.CombinedOutput.Write([]byte("0f8b7d3c2a1e 433795"))
		return err
	})
	pos, err := Checkout("/repo").ResolvePosition(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, Position{Hash: "0f8b7d3c2a1e", LocalNum: 433795, OnDefault: true}, pos)

	require.Len(t, collector.Commands(), 1)
	assert.Equal(t, []string{
		"-R", "/repo", "log", "-r", "parents() and default", "--template", "{node|short} {rev}",
	}, collector.Commands()[0].Args)
}

func TestResolvePosition_AmbiguousWithoutDecider(t *testing.T) {
	ctx, _ := testContext(nil)
	_, err := Checkout("/repo").ResolvePosition(ctx, nil)
	require.ErrorIs(t, err, ErrAmbiguousCheckout)
}

func TestResolvePosition_AbortIssuesNoFurtherQueries(t *testing.T) {
	ctx, collector := testContext(nil)
	_, err := Checkout("/repo").ResolvePosition(ctx, PolicyDecider(Abort))
	require.ErrorIs(t, err, ErrAborted)
	assert.Len(t, collector.Commands(), 1)
}

func TestResolvePosition_UpdateToDefault(t *testing.T) {
	calls := 0
	ctx, collector := testContext(func(ctx context.Context, cmd *exec.Command) error {
		calls++
		switch calls {
		case 1:
			return nil // empty output: not on default
		case 2:
			return nil // hg update default
		default:
			_, err := cmd.CombinedOutput.Write([]byte("0f8b7d3c2a1e 433795"))
			return err
		}
	})
	pos, err := Checkout("/repo").ResolvePosition(ctx, PolicyDecider(UpdateToDefault))
	require.NoError(t, err)
	assert.Equal(t, Position{Hash: "0f8b7d3c2a1e", LocalNum: 433795, OnDefault: true}, pos)

	cmds := collector.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, []string{"-R", "/repo", "update", "default"}, cmds[1].Args)
	assert.Equal(t, "parents() and default", cmds[2].Args[4])
}

func TestResolvePosition_UseCurrent(t *testing.T) {
	calls := 0
	ctx, collector := testContext(func(ctx context.Context, cmd *exec.Command) error {
		calls++
		if calls == 1 {
			return nil
		}
		_, err := cmd.CombinedOutput.Write([]byte("9c1b2a3d4e5f 120044"))
		return err
	})
	pos, err := Checkout("/repo").ResolvePosition(ctx, PolicyDecider(UseCurrent))
	require.NoError(t, err)
	assert.Equal(t, Position{Hash: "9c1b2a3d4e5f", LocalNum: 120044, OnDefault: false}, pos)

	cmds := collector.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "parents()", cmds[1].Args[4])
}

func TestResolvePosition_InvalidOperatorChoice(t *testing.T) {
	ctx, _ := testContext(nil)
	decider := func() (Action, error) {
		return Decide("q")
	}
	_, err := Checkout("/repo").ResolvePosition(ctx, decider)
	require.ErrorIs(t, err, ErrInvalidChoice)
}

func TestRepoName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hg"), 0755))
	hgrc := "[paths]\ndefault = https://hg.mozilla.org/mozilla-central/\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hg", "hgrc"), []byte(hgrc), 0644))

	name, err := Checkout(dir).RepoName()
	require.NoError(t, err)
	assert.Equal(t, "mozilla-central", name)
}

func TestRepoName_NoTrailingSlash(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hg"), 0755))
	hgrc := "[paths]\ndefault = ssh://hg.example.org//srv/hg/mozilla-beta\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hg", "hgrc"), []byte(hgrc), 0644))

	name, err := Checkout(dir).RepoName()
	require.NoError(t, err)
	assert.Equal(t, "mozilla-beta", name)
}

func TestRepoName_MissingHgrc(t *testing.T) {
	_, err := Checkout(t.TempDir()).RepoName()
	require.Error(t, err)
}
