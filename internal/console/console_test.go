package console

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/executor"
)

func executorWith(t *testing.T) *executor.Executor {
	t.Helper()
	x := index.New(index.Options{})
	for i := 0; i < 12; i++ {
		ents := []index.Entity{{Text: "Hanoi"}}
		if i%2 == 0 {
			ents = append(ents, index.Entity{Text: "Mai"})
		}
		_, err := x.Merge(fmt.Sprintf("/data/articles/%02d.txt", i), ents)
		require.NoError(t, err)
	}
	x.MarkComplete()
	x.Seal()
	e := executor.New(nil, executor.Options{}, nil)
	require.NoError(t, e.Swap(x))
	return e
}

func run(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	c := New(executorWith(t), strings.NewReader(input), &out)
	require.NoError(t, c.Run(context.Background()))
	return out.String()
}

func TestSearch_PreviewAndMore(t *testing.T) {
	out := run(t, "1\nHanoi\n4\n")

	assert.Contains(t, out, "Found 12 articles containing 'Hanoi':")
	assert.Contains(t, out, " - 00.txt\n")
	assert.Contains(t, out, " - 09.txt\n")
	assert.NotContains(t, out, " - 10.txt")
	assert.Contains(t, out, "... and 2 more.")
	assert.Contains(t, out, "Goodbye.")
}

func TestSearch_DidYouMean(t *testing.T) {
	out := run(t, "1\nhanoi\n4\n")

	assert.Contains(t, out, "Did you mean 'Hanoi'? Found 12 articles.")
}

func TestSearch_NotFound(t *testing.T) {
	out := run(t, "1\nSaigon\n4\n")

	assert.Contains(t, out, "No articles found for 'Saigon'.")
}

func TestTop_DefaultWhenBlank(t *testing.T) {
	out := run(t, "2\n\n4\n")

	assert.Contains(t, out, "Top 20 entities:")
	assert.Contains(t, out, "Hanoi: 12\nMai: 6\n")
}

func TestTop_Explicit(t *testing.T) {
	out := run(t, "2\n1\n4\n")

	assert.Contains(t, out, "Top 1 entities:\nHanoi: 12\n")
	assert.NotContains(t, out, "Mai: 6")
}

func TestRelated(t *testing.T) {
	out := run(t, "3\nMAI\n3\nNobody\n4\n")

	assert.Contains(t, out, "Did you mean 'Mai'? Related entities:\nHanoi (co-occurred 6 times)")
	assert.Contains(t, out, "No related info for 'Nobody'.")
}

func TestInvalidChoiceAndEOF(t *testing.T) {
	out := run(t, "9\n")

	assert.Contains(t, out, "Invalid choice.")
	assert.NotContains(t, out, "Goodbye.")
}
