package query

import (
	"regexp"
	"strings"
)

const (
	maxOwnerLen = 39
	maxNameLen  = 100
)

var repoPartPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)

// ValidateRepoName accepts GitHub "owner/name" repository names.
func ValidateRepoName(repo string) error {
	if repo == "" {
		return invalid("repo", "must not be empty")
	}
	if strings.Contains(repo, "..") {
		return invalid("repo", "must not contain '..'")
	}

	owner, name, ok := strings.Cut(repo, "/")
	if !ok || strings.Contains(name, "/") {
		return invalid("repo", "expected owner/name")
	}
	if !repoPartPattern.MatchString(owner) || !repoPartPattern.MatchString(name) {
		return invalid("repo", "expected owner/name")
	}
	if len(owner) > maxOwnerLen || len(name) > maxNameLen {
		return invalid("repo", "owner or name too long")
	}
	return nil
}
