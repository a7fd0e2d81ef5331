package sfquery

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Query runs a SOQL query and returns every record the server pages back,
// in server delivery order. The whole result set is materialized in memory;
// an error on any page aborts the chain with no partial results.
func (c *restClient) Query(ctx context.Context, soql string) ([]Record, error) {
	path := fmt.Sprintf("/services/data/v%s/query?q=%s", c.apiVersion, url.QueryEscape(soql))
	return c.queryAll(ctx, path)
}

// queryAll follows the server's nextRecordsUrl chain, appending each page's
// records to one accumulator. The chain is inherently sequential: the next
// page's URL is only known once the current page is decoded.
func (c *restClient) queryAll(ctx context.Context, next string) ([]Record, error) {
	var records []Record
	for next != "" {
		env, err := c.queryPage(ctx, next)
		if err != nil {
			return nil, err
		}
		records = append(records, env.Records...)
		queryPagesTotal.Inc()
		next = env.NextRecordsURL
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// queryPage fetches and decodes a single page. continuation is either the
// initial query path or a server-issued nextRecordsUrl; salesforce issues
// the latter with a leading slash, which is normalized here so joining with
// the instance URL never doubles the separator.
func (c *restClient) queryPage(ctx context.Context, continuation string) (*queryEnvelope, error) {
	relURL := "/" + strings.TrimPrefix(continuation, "/")

	headers := http.Header{}
	headers.Set("Accept", "application/xml")

	_, resBody, err := c.SendRequest(ctx, http.MethodGet, relURL, headers, nil)
	if err != nil {
		return nil, err
	}

	var env queryEnvelope
	if err := xml.Unmarshal(resBody, &env); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}

	// An Error node takes precedence over everything else in the envelope:
	// no record decoding, no next page. Activation requires both fields
	// non-empty; a partial Error node is ignored.
	if env.Err != nil && env.Err.ErrCode != "" && env.Err.Message != "" {
		return nil, env.Err
	}

	if c.recordEnc != nil {
		for _, rec := range env.Records {
			rec.reencode(c.recordEnc)
		}
	}

	return &env, nil
}
