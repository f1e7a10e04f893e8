package publish

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Committer records published artifacts in version control.
type Committer interface {
	Commit(ctx context.Context, paths []string, message string) error
	Push(ctx context.Context) error
}

// CommandRunner executes a binary in a directory and returns combined output.
type CommandRunner func(ctx context.Context, dir, binary string, args ...string) ([]byte, error)

// Git drives the git CLI in a working tree.
type Git struct {
	binary string
	dir    string
	run    CommandRunner
}

// NewGit returns a committer for the repository at dir. run may be nil.
func NewGit(binary, dir string, run CommandRunner) *Git {
	if strings.TrimSpace(binary) == "" {
		binary = "git"
	}
	if run == nil {
		run = execRunner
	}
	return &Git{binary: binary, dir: dir, run: run}
}

func execRunner(ctx context.Context, dir, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Commit stages paths and commits them with message.
func (g *Git) Commit(ctx context.Context, paths []string, message string) error {
	if len(paths) == 0 {
		return nil
	}
	add := append([]string{"add", "--"}, paths...)
	if out, err := g.run(ctx, g.dir, g.binary, add...); err != nil {
		return fmt.Errorf("git add: %w: %s", err, strings.TrimSpace(string(out)))
	}
	commit := append([]string{"commit", "-m", message, "--"}, paths...)
	if out, err := g.run(ctx, g.dir, g.binary, commit...); err != nil {
		return fmt.Errorf("git commit: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Push pushes the current branch to its upstream.
func (g *Git) Push(ctx context.Context) error {
	if out, err := g.run(ctx, g.dir, g.binary, "push"); err != nil {
		return fmt.Errorf("git push: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CommitMessage is the commit subject for a published post.
func CommitMessage(title string) string {
	return "content: Add blog post - " + title
}
