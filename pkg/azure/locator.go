package azure

import (
	"strings"

	"github.com/GappelSolutions/lazyops/pkg/model"
)

// Relation artifact URLs are percent-encoded with the literal separator
// %2F (either case) between path segments. The positional convention is
// fixed: for a pull request the PR number is the last segment and the
// repository id the second-to-last; for a commit the hash is last and
// the repository id second-to-last. A more general URL parser would
// break bit-compatibility with the upstream format, so splitting stays
// literal.

// PullRequestRef identifies a pull request extracted from a relation
// locator.
type PullRequestRef struct {
	ID         string
	Repository string
}

// CommitRef identifies a commit extracted from a relation locator.
type CommitRef struct {
	Hash       string
	Repository string
}

// splitLocator splits a percent-encoded artifact locator on %2F and
// %2f.
func splitLocator(url string) []string {
	var parts []string
	for _, p := range strings.Split(url, "%2F") {
		parts = append(parts, strings.Split(p, "%2f")...)
	}
	return parts
}

// ParsePullRequestLocator extracts the PR number (last segment) and,
// when at least three segments are present, the repository id
// (second-to-last) from a "Pull Request" relation URL.
func ParsePullRequestLocator(url string) (PullRequestRef, bool) {
	parts := splitLocator(url)
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return PullRequestRef{}, false
	}
	ref := PullRequestRef{ID: parts[len(parts)-1]}
	if len(parts) >= 3 {
		ref.Repository = parts[len(parts)-2]
	}
	return ref, true
}

// ParseCommitLocator extracts the commit hash (last segment) and
// repository id (second-to-last) from a "Fixed in Commit" relation
// URL. Both segments are required.
func ParseCommitLocator(url string) (CommitRef, bool) {
	parts := splitLocator(url)
	if len(parts) < 2 || parts[len(parts)-1] == "" {
		return CommitRef{}, false
	}
	return CommitRef{
		Hash:       parts[len(parts)-1],
		Repository: parts[len(parts)-2],
	}, true
}

// TitleKey derives the title-cache key for a relation, or "" when the
// relation carries no fetchable title. Keys are "pr:<id>" and
// "commit:<hash>".
func TitleKey(rel model.Relation) string {
	switch rel.Attributes.Name {
	case model.RelNamePullRequest:
		if ref, ok := ParsePullRequestLocator(rel.URL); ok {
			return "pr:" + ref.ID
		}
	case model.RelNameFixedInCommit:
		if ref, ok := ParseCommitLocator(rel.URL); ok {
			return "commit:" + ref.Hash
		}
	}
	return ""
}
