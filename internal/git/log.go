package git

import (
	"bufio"
	"bytes"
	"os/exec"
	"strings"
)

// CommitsSince returns the commits on HEAD since it diverged from base,
// newest first.
func CommitsSince(repoRoot, base string) ([]CommitInfo, error) {
	if _, err := ValidateCommit(repoRoot, base); err != nil {
		return nil, err
	}
	output, err := exec.Command("git", "-C", repoRoot, "log", "--oneline", base+"..HEAD").Output()
	if err != nil {
		return nil, nil // No commits or unborn HEAD
	}
	return parseGitLogOneline(output), nil
}

// ShortSHA returns a short version of a SHA (up to 8 chars).
func ShortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

// parseGitLogOneline parses git log --oneline output.
func parseGitLogOneline(data []byte) []CommitInfo {
	var commits []CommitInfo
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		ci := CommitInfo{SHA: parts[0]}
		if len(parts) > 1 {
			ci.Message = parts[1]
		}
		commits = append(commits, ci)
	}
	return commits
}
