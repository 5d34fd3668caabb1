// Package console is the interactive menu over a loaded index: search by
// entity, top entities and related entities, with a case-insensitive "Did
// you mean" fallback.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/searcher/executor"
)

const (
	previewDocs     = 10
	defaultTopK     = 20
	defaultRelatedK = 10
)

// Querier is satisfied by executor.Executor.
type Querier interface {
	Search(ctx context.Context, entity string, limit int) (*executor.Result, error)
	Top(ctx context.Context, k int) (*executor.Result, error)
	Related(ctx context.Context, entity string, k int) (*executor.Result, error)
}

type Console struct {
	q        Querier
	in       *bufio.Scanner
	out      io.Writer
	topK     int
	relatedK int
}

// Option adjusts console defaults.
type Option func(*Console)

// WithDefaults sets the top-k used when the prompt is left blank and the
// number of related entities listed.
func WithDefaults(topK, relatedK int) Option {
	return func(c *Console) {
		if topK > 0 {
			c.topK = topK
		}
		if relatedK > 0 {
			c.relatedK = relatedK
		}
	}
}

func New(q Querier, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		q:        q,
		in:       bufio.NewScanner(in),
		out:      out,
		topK:     defaultTopK,
		relatedK: defaultRelatedK,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run loops over the menu until the user exits, input ends or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		c.printf("\nOptions:\n")
		c.printf("1. Search articles by entity name\n")
		c.printf("2. Show top frequent entities\n")
		c.printf("3. Find related entities (co-occurrence)\n")
		c.printf("4. Exit\n")
		choice, ok := c.prompt("Enter choice (1-4): ")
		if !ok {
			return c.in.Err()
		}

		var err error
		switch choice {
		case "1":
			err = c.search(ctx)
		case "2":
			err = c.top(ctx)
		case "3":
			err = c.related(ctx)
		case "4":
			c.printf("Goodbye.\n")
			return nil
		default:
			c.printf("Invalid choice.\n")
		}
		if err != nil {
			return err
		}
	}
}

func (c *Console) search(ctx context.Context) error {
	keyword, ok := c.prompt("Enter entity name to search: ")
	if !ok || keyword == "" {
		return nil
	}
	res, err := c.q.Search(ctx, keyword, 0)
	if err != nil {
		return err
	}
	switch {
	case res.TotalHits == 0:
		c.printf("No articles found for '%s'.\n", keyword)
		return nil
	case res.Fallback:
		c.printf("Did you mean '%s'? Found %d articles.\n", res.Matched, res.TotalHits)
	default:
		c.printf("Found %d articles containing '%s':\n", res.TotalHits, keyword)
	}
	for i, doc := range res.Documents {
		if i == previewDocs {
			break
		}
		c.printf(" - %s\n", filepath.Base(doc))
	}
	if res.TotalHits > previewDocs {
		c.printf("... and %d more.\n", res.TotalHits-previewDocs)
	}
	return nil
}

func (c *Console) top(ctx context.Context) error {
	answer, _ := c.prompt(fmt.Sprintf("How many top entities (default %d)? ", c.topK))
	k, err := strconv.Atoi(answer)
	if err != nil || k <= 0 {
		k = c.topK
	}
	res, err := c.q.Top(ctx, k)
	if err != nil {
		return err
	}
	c.printf("Top %d entities:\n", k)
	for _, ec := range res.Entities {
		c.printf("%s: %d\n", ec.Entity, ec.Count)
	}
	return nil
}

func (c *Console) related(ctx context.Context) error {
	keyword, ok := c.prompt("Enter entity name: ")
	if !ok || keyword == "" {
		return nil
	}
	res, err := c.q.Related(ctx, keyword, c.relatedK)
	if err != nil {
		return err
	}
	if res.TotalHits == 0 {
		c.printf("No related info for '%s'.\n", keyword)
		return nil
	}
	if res.Fallback {
		c.printf("Did you mean '%s'? Related entities:\n", res.Matched)
	} else {
		c.printf("Entities related to '%s':\n", keyword)
	}
	for _, ec := range res.Entities {
		c.printf("%s (co-occurred %d times)\n", ec.Entity, ec.Count)
	}
	return nil
}

func (c *Console) prompt(label string) (string, bool) {
	c.printf("%s", label)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
