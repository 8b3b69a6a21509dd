// Package transform turns a repository record into the canonical text fed
// to the embedding provider and decides whether a row needs (re-)embedding.
package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/iskng/embed-star/internal/domain"
)

// Build produces the work item for repo if it needs embedding against
// activeModel, truncating the canonical text to charBudget runes. It
// returns ok=false when the repo does not need embedding.
func Build(repo domain.Repository, activeModel string, charBudget int) (domain.WorkItem, bool) {
	if !repo.NeedsEmbedding(activeModel) {
		return domain.WorkItem{}, false
	}

	text := canonicalText(repo, charBudget)
	return domain.WorkItem{
		RepoID:      repo.ID,
		Text:        text,
		Fingerprint: fingerprint(text),
	}, true
}

// canonicalText concatenates a fixed field order, newline-separated, then
// truncates at a rune boundary to charBudget.
func canonicalText(repo domain.Repository, charBudget int) string {
	var b strings.Builder
	b.WriteString(repo.FullName)
	if repo.Description != "" {
		fmt.Fprintf(&b, "\nDescription: %s", repo.Description)
	}
	if repo.Language != "" {
		fmt.Fprintf(&b, "\nLanguage: %s", repo.Language)
	}
	fmt.Fprintf(&b, "\nStars: %d", repo.Stars)
	fmt.Fprintf(&b, "\nOwner: %s", repo.OwnerLogin)

	return truncateRunes(b.String(), charBudget)
}

// truncateRunes cuts s to at most budget runes, never splitting a
// multi-byte UTF-8 sequence: text exactly at budget is untouched; budget+1
// is cut to budget.
func truncateRunes(s string, budget int) string {
	if budget <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return string(runes[:budget])
}

// fingerprint is the SHA-256 hash of the canonical text, used as the cache
// key component and for idempotent re-embedding decisions.
func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
