package git

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// ChangedFiles lists the paths a proposed change touches: commits on HEAD
// since it diverged from base, plus staged, unstaged and untracked files
// in the working tree. Paths are relative to the repository root.
func ChangedFiles(repoRoot, base string) ([]Change, error) {
	if _, err := ValidateCommit(repoRoot, base); err != nil {
		return nil, fmt.Errorf("%w: %s", err, base)
	}

	committed, err := nameStatus(repoRoot, base+"...HEAD")
	if err != nil {
		return nil, err
	}
	uncommitted, err := nameStatus(repoRoot, "HEAD")
	if err != nil {
		return nil, err
	}
	untracked, err := untrackedFiles(repoRoot)
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]Change)
	for _, set := range [][]Change{committed, uncommitted, untracked} {
		for _, c := range set {
			if prev, ok := byPath[c.Path]; ok && prev.Status == StatusAdded && c.Status != StatusDeleted {
				// still new relative to base
				c.Status = StatusAdded
			}
			byPath[c.Path] = c
		}
	}

	changes := make([]Change, 0, len(byPath))
	for _, c := range byPath {
		changes = append(changes, c)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// Paths returns every path a change set touches, including rename sources.
func Paths(changes []Change) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range changes {
		for _, p := range []string{c.OldPath, c.Path} {
			if p != "" && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

func nameStatus(repoRoot string, rangeSpec string) ([]Change, error) {
	cmd := exec.Command("git", "-C", repoRoot, "diff", "--name-status", "-M", rangeSpec)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff %s: %w", rangeSpec, err)
	}
	return parseNameStatus(output), nil
}

func untrackedFiles(repoRoot string) ([]Change, error) {
	cmd := exec.Command("git", "-C", repoRoot, "ls-files", "--others", "--exclude-standard", "--full-name")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("listing untracked files: %w", err)
	}
	var changes []Change
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			changes = append(changes, Change{Status: StatusAdded, Path: line})
		}
	}
	return changes, scanner.Err()
}

// parseNameStatus parses git diff --name-status output. Rename and copy
// lines carry a similarity score and two paths.
func parseNameStatus(data []byte) []Change {
	var changes []Change
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 || parts[0] == "" {
			continue
		}
		status := parts[0][:1]
		switch {
		case (status == StatusRenamed || status == StatusCopied) && len(parts) >= 3:
			changes = append(changes, Change{Status: status, OldPath: parts[1], Path: parts[2]})
		default:
			changes = append(changes, Change{Status: status, Path: parts[1]})
		}
	}
	return changes
}
