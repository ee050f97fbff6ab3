// Package git inspects the repository the pipeline writes into.
package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrGitNotFound is returned when the git binary is not in PATH.
var ErrGitNotFound = errors.New("git not found in PATH")

// Checker runs git in Dir. An empty Dir uses the working directory.
type Checker struct {
	Dir string
}

// NewChecker creates a checker for dir.
func NewChecker(dir string) *Checker {
	return &Checker{Dir: dir}
}

func (c *Checker) command(args ...string) *exec.Cmd {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.Dir
	return cmd
}

// IsGitRepository reports whether Dir is inside a Git work tree.
func (c *Checker) IsGitRepository() (bool, error) {
	if err := c.command("rev-parse", "--git-dir").Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return false, ErrGitNotFound
		}
		return false, nil
	}
	return true, nil
}

// FileStatus is one line of `git status --porcelain`.
type FileStatus struct {
	Path      string
	Untracked bool
}

// DirtyFiles returns uncommitted changes limited to paths, or to the whole
// work tree when paths is empty.
func (c *Checker) DirtyFiles(paths ...string) ([]FileStatus, error) {
	args := append([]string{"status", "--porcelain", "--"}, paths...)
	output, err := c.command(args...).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to check Git status: %w", err)
	}
	return parsePorcelain(string(output)), nil
}

func parsePorcelain(output string) []FileStatus {
	var files []FileStatus
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}
		files = append(files, FileStatus{
			Path:      strings.TrimSpace(line[3:]),
			Untracked: strings.HasPrefix(line, "??"),
		})
	}
	return files
}

// FormatDirtyFiles renders files the way `git status --short` does, modified
// files first.
func FormatDirtyFiles(files []FileStatus) string {
	var modified, untracked []string
	for _, f := range files {
		if f.Untracked {
			untracked = append(untracked, "?? "+f.Path)
		} else {
			modified = append(modified, " M "+f.Path)
		}
	}

	var parts []string
	if len(modified) > 0 {
		parts = append(parts, "Uncommitted changes:")
		parts = append(parts, modified...)
	}
	if len(untracked) > 0 {
		if len(parts) > 0 {
			parts = append(parts, "")
		}
		parts = append(parts, "Untracked files:")
		parts = append(parts, untracked...)
	}
	return strings.Join(parts, "\n")
}
