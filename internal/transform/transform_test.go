package transform

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iskng/embed-star/internal/domain"
)

func freshRepo() domain.Repository {
	return domain.Repository{
		ID:         "repo:1",
		FullName:   "iskng/embed-star",
		Description: "background worker",
		Language:   "Go",
		Stars:      42,
		OwnerLogin: "iskng",
	}
}

func TestBuild_SkipsRowThatDoesNotNeedEmbedding(t *testing.T) {
	repo := freshRepo()
	repo.Embedding = []float32{1, 2, 3}
	repo.EmbeddingModel = "nomic-embed-text"
	repo.UpdatedAt = time.Now().Add(-time.Hour)
	repo.EmbeddingGeneratedAt = time.Now()

	_, ok := Build(repo, "nomic-embed-text", 8000)
	assert.False(t, ok)
}

func TestBuild_ProducesDeterministicFingerprint(t *testing.T) {
	repo := freshRepo()

	item1, ok := Build(repo, "nomic-embed-text", 8000)
	require.True(t, ok)
	item2, ok := Build(repo, "nomic-embed-text", 8000)
	require.True(t, ok)

	assert.Equal(t, item1.Fingerprint, item2.Fingerprint)
	assert.Contains(t, item1.Text, "iskng/embed-star")
	assert.Contains(t, item1.Text, "Description: background worker")
	assert.Contains(t, item1.Text, "Language: Go")
	assert.Contains(t, item1.Text, "Stars: 42")
	assert.Contains(t, item1.Text, "Owner: iskng")
}

func TestBuild_DifferentTextDifferentFingerprint(t *testing.T) {
	a := freshRepo()
	b := freshRepo()
	b.Description = "a completely different description"

	itemA, _ := Build(a, "nomic-embed-text", 8000)
	itemB, _ := Build(b, "nomic-embed-text", 8000)

	assert.NotEqual(t, itemA.Fingerprint, itemB.Fingerprint)
}

func TestTruncateRunes_ExactBudgetUntouched(t *testing.T) {
	s := strings.Repeat("a", 10)
	assert.Equal(t, s, truncateRunes(s, 10))
}

func TestTruncateRunes_OverBudgetCutsToBudget(t *testing.T) {
	s := strings.Repeat("a", 11)
	got := truncateRunes(s, 10)
	assert.Equal(t, 10, len([]rune(got)))
}

func TestTruncateRunes_MultiByteRuneNotSplit(t *testing.T) {
	// "日" is a 3-byte rune; the cut must land on a whole rune, never
	// mid-sequence, regardless of byte width.
	s := strings.Repeat("日", 5)
	got := truncateRunes(s, 3)
	assert.Equal(t, 3, len([]rune(got)))
	assert.True(t, utf8.ValidString(got))
}
