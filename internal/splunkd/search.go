package splunkd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Oneshot runs a blocking search and returns its rows.
// POST search/jobs exec_mode=oneshot
func (c *Client) Oneshot(ctx context.Context, query string) (*SearchRows, error) {
	form := url.Values{}
	form.Set("search", query)
	form.Set("exec_mode", "oneshot")
	form.Set("output_mode", "json_rows")
	form.Set("count", "0")

	var rows SearchRows
	if err := c.postForm(ctx, "search/jobs", form, &rows); err != nil {
		return nil, fmt.Errorf("oneshot search: %w", err)
	}
	return &rows, nil
}

var splQuoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Quote renders s as a double-quoted SPL string literal.
func Quote(s string) string {
	return `"` + splQuoter.Replace(s) + `"`
}

// readIngestConfigQuery lists the collection through its lookup definition.
func readIngestConfigQuery(lookup string) string {
	return fmt.Sprintf("| inputlookup %s | table ingest_url, _key", lookup)
}

// updateIngestConfigQuery rewrites ingest_url on the row with the given key
// and writes the result back to the same lookup.
func updateIngestConfigQuery(lookup, key, ingestURL string) string {
	return fmt.Sprintf("| inputlookup %s | search _key=%s | eval ingest_url=%s | outputlookup %s",
		lookup, Quote(key), Quote(ingestURL), lookup)
}
