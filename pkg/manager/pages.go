package manager

import (
	"context"
	"iter"

	pkgerrors "jrm/pkg/errors"
	"jrm/pkg/rules"
)

// AllRules walks the whole inventory page by page, feeding each cursor
// back until the manager reports the last page. Iteration stops at the
// first error, which is yielded with a zero Rule.
func (c *Client) AllRules(ctx context.Context, limit int) iter.Seq2[rules.Rule, error] {
	return func(yield func(rules.Rule, error) bool) {
		params := ListParams{Limit: limit}
		seen := make(map[string]struct{})

		for {
			page, err := c.ListRules(ctx, params)
			if err != nil {
				yield(rules.Rule{}, err)
				return
			}
			for _, rule := range page.List {
				if !yield(rule, nil) {
					return
				}
			}
			if !page.HasMore() {
				return
			}

			next := page.NextCursor()
			if _, dup := seen[next]; dup || next == "" {
				yield(rules.Rule{}, pkgerrors.ErrMalformedResponse.
					WithMessage("manager returned a cursor that does not advance").
					WithDetail("cursor", next))
				return
			}
			seen[next] = struct{}{}
			params.Cursor = next
		}
	}
}

// CollectRules drains AllRules into a slice.
func (c *Client) CollectRules(ctx context.Context, limit int) ([]rules.Rule, error) {
	all := []rules.Rule{}
	for rule, err := range c.AllRules(ctx, limit) {
		if err != nil {
			return nil, err
		}
		all = append(all, rule)
	}
	return all, nil
}
