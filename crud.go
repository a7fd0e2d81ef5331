package sfquery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

func (c *restClient) sobjectURL(sobject string, parts ...string) string {
	relURL := fmt.Sprintf("/services/data/v%s/sobjects/%s", c.apiVersion, sobject)
	for _, part := range parts {
		relURL += "/" + part
	}
	return relURL
}

var jsonHeaders = http.Header{"Content-Type": []string{"application/json"}}

// Create inserts a new sobject record and returns the server-assigned ID.
func (c *restClient) Create(ctx context.Context, sobject string, fields map[string]any) (string, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	_, resBody, err := c.SendRequest(ctx, http.MethodPost, c.sobjectURL(sobject), jsonHeaders, body)
	if err != nil {
		return "", err
	}
	var res CreateResponse
	if err := json.Unmarshal(resBody, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// Retrieve fetches a single sobject record by ID, optionally restricted to
// the given field list, flattened to a Record.
func (c *restClient) Retrieve(ctx context.Context, sobject, id string, fields []string) (Record, error) {
	relURL := c.sobjectURL(sobject, id)
	if len(fields) > 0 {
		relURL += "?fields=" + url.QueryEscape(strings.Join(fields, ","))
	}
	_, resBody, err := c.SendRequest(ctx, http.MethodGet, relURL, nil, nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(resBody, &raw); err != nil {
		return nil, err
	}
	rec := make(Record, len(raw))
	for field, value := range raw {
		switch value := value.(type) {
		case nil:
			rec[field] = ""
		case string:
			rec[field] = value
		case map[string]any, []any:
			// attributes and nested sobjects are not part of the flat row
		default:
			rec[field] = fmt.Sprint(value)
		}
	}
	return rec, nil
}

// Update applies a partial update to a single sobject record.
func (c *restClient) Update(ctx context.Context, sobject, id string, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, _, err = c.SendRequest(ctx, http.MethodPatch, c.sobjectURL(sobject, id), jsonHeaders, body)
	return err
}

// Upsert creates or updates a record addressed by an external ID field.
func (c *restClient) Upsert(ctx context.Context, sobject, externalIDField, externalID string, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	relURL := c.sobjectURL(sobject, externalIDField, url.PathEscape(externalID))
	_, _, err = c.SendRequest(ctx, http.MethodPatch, relURL, jsonHeaders, body)
	return err
}

// Delete removes a single sobject record.
func (c *restClient) Delete(ctx context.Context, sobject, id string) error {
	_, _, err := c.SendRequest(ctx, http.MethodDelete, c.sobjectURL(sobject, id), nil, nil)
	return err
}
