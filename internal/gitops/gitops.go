// Package gitops versions generated artifacts through the git CLI.
// Every operation shells out; nothing here links a git library.
package gitops

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"testforge/internal/config"
	"testforge/internal/logging"
	"testforge/internal/report"
)

// Client runs git against one repository.
type Client struct {
	RepoDir string

	logger *slog.Logger
}

func New(repoDir string) *Client {
	return &Client{RepoDir: repoDir, logger: logging.New("gitops")}
}

// IsRepo reports whether RepoDir is inside a git work tree.
func (c *Client) IsRepo(ctx context.Context) bool {
	out, err := c.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// HasChanges reports whether the tree holds uncommitted changes.
func (c *Client) HasChanges(ctx context.Context) (bool, error) {
	out, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Commit stages paths and commits them, returning the new commit id.
// An empty paths slice stages the whole tree.
func (c *Client) Commit(ctx context.Context, paths []string, message string) (string, error) {
	addArgs := []string{"add"}
	if len(paths) == 0 {
		addArgs = append(addArgs, "-A")
	} else {
		addArgs = append(addArgs, "--")
		addArgs = append(addArgs, paths...)
	}
	if _, err := c.run(ctx, addArgs...); err != nil {
		return "", err
	}
	if _, err := c.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}
	id, err := c.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	id = strings.TrimSpace(id)
	c.logger.Info("committed artifacts", "commit", id, "paths", len(paths))
	return id, nil
}

// Push sends the current branch to its upstream.
func (c *Client) Push(ctx context.Context) error {
	_, err := c.run(ctx, "push")
	return err
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if c.RepoDir != "" {
		cmd.Dir = c.RepoDir
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// AutoCommit commits generated artifacts after a fully green run. It is
// a no-op unless git.auto_commit is enabled and every outcome passed.
// Push failures are logged, not fatal: the commit already landed.
func AutoCommit(ctx context.Context, cfg config.GitConfig, repoDir string, rep report.Report, paths []string) (string, error) {
	if !cfg.AutoCommit || !rep.AllPassed() {
		return "", nil
	}
	c := New(repoDir)
	if !c.IsRepo(ctx) {
		return "", fmt.Errorf("auto-commit: %s is not a git repository", repoDir)
	}
	dirty, err := c.HasChanges(ctx)
	if err != nil {
		return "", err
	}
	if !dirty {
		c.logger.Debug("auto-commit: nothing to commit")
		return "", nil
	}
	id, err := c.Commit(ctx, paths, RenderMessage(cfg.MessageTemplate, rep))
	if err != nil {
		return "", err
	}
	if cfg.AutoPush {
		if err := c.Push(ctx); err != nil {
			c.logger.Warn("auto-push failed", "err", err)
		}
	}
	return id, nil
}

// RenderMessage fills the {passed}, {failed}, {errored}, {total} and
// {timestamp} placeholders of a commit message template.
func RenderMessage(tmpl string, rep report.Report) string {
	r := strings.NewReplacer(
		"{passed}", strconv.Itoa(rep.Passed),
		"{failed}", strconv.Itoa(rep.Failed),
		"{errored}", strconv.Itoa(rep.Errored),
		"{total}", strconv.Itoa(rep.Total),
		"{timestamp}", time.Now().UTC().Format("2006-01-02 15:04:05"),
	)
	return r.Replace(tmpl)
}
