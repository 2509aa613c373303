// Package vcs snapshots session directories with the git binary.
package vcs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Default identity used when the repository has none configured.
const (
	DefaultAuthorName  = "scaffold"
	DefaultAuthorEmail = "scaffold@localhost"
)

// Git implements engine.VersionControl by shelling out to git.
type Git struct {
	// Binary is the git executable; "git" when empty.
	Binary string
}

func New() *Git {
	return &Git{Binary: "git"}
}

// Available reports whether the git binary can be found.
func (g *Git) Available() bool {
	_, err := exec.LookPath(g.bin())
	return err == nil
}

// Init runs git init in dir. Re-initializing an existing repository is harmless.
func (g *Git) Init(ctx context.Context, dir string) error {
	if _, err := g.run(ctx, dir, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init %s: %w", dir, err)
	}
	return nil
}

// StageAndCommit stages everything under dir and commits it.
// It returns the short commit id, or "" when the tree was clean.
func (g *Git) StageAndCommit(ctx context.Context, dir, message string) (string, error) {
	if _, err := g.run(ctx, dir, "add", "--all"); err != nil {
		return "", fmt.Errorf("git add: %w", err)
	}
	status, err := g.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return "", fmt.Errorf("git status: %w", err)
	}
	if strings.TrimSpace(status) == "" {
		return "", nil
	}

	args := g.identity(ctx, dir)
	args = append(args, "commit", "--quiet", "-m", message)
	if _, err := g.run(ctx, dir, args...); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	head, err := g.run(ctx, dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(head), nil
}

// identity returns -c overrides when no author email is configured,
// so commits work on machines without a global git identity.
func (g *Git) identity(ctx context.Context, dir string) []string {
	if email, err := g.run(ctx, dir, "config", "user.email"); err == nil && strings.TrimSpace(email) != "" {
		return nil
	}
	return []string{
		"-c", "user.name=" + DefaultAuthorName,
		"-c", "user.email=" + DefaultAuthorEmail,
	}
}

// Commit is one entry of a session's git history.
type Commit struct {
	SHA     string
	Author  string
	Date    string
	Message string
}

// Commits lists the history of the repository in dir, newest first.
func (g *Git) Commits(ctx context.Context, dir string) ([]Commit, error) {
	// Separator unlikely to appear in commit messages.
	const sep = "|||SCAFFOLD_SEP|||"

	out, err := g.run(ctx, dir, "log", "--pretty=format:%H%n%an%n%aI%n%B"+sep)
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.Index(data, []byte(sep)); i >= 0 {
			return i + len(sep), data[:i], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	})

	var commits []Commit
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		lines := strings.SplitN(text, "\n", 4)
		if len(lines) < 3 {
			continue // malformed
		}
		c := Commit{SHA: lines[0], Author: lines[1], Date: lines[2]}
		if len(lines) == 4 {
			c.Message = strings.TrimSpace(lines[3])
		}
		commits = append(commits, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return commits, nil
}

func (g *Git) bin() string {
	if g.Binary == "" {
		return "git"
	}
	return g.Binary
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.bin(), args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}
