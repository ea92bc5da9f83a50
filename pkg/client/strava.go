package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
)

// PageSize is the number of activities requested per page. The provider
// silently returns nothing for larger values, so it must not be raised.
const PageSize = 199

// ActivityID identifies one activity
type ActivityID int64

// Record is a decoded JSON object. Numbers are kept as json.Number so that
// large identifiers survive unchanged. Keys may be absent.
type Record map[string]any

// ListActivities pages through the athlete's activities until an empty page
// and returns their ids in discovery order
func (c *Client) ListActivities(ctx context.Context) ([]ActivityID, error) {
	var ids []ActivityID
	for page := 1; ; page++ {
		query := url.Values{
			"per_page": {strconv.Itoa(PageSize)},
			"page":     {strconv.Itoa(page)},
		}
		body, err := c.Get(ctx, "/athlete/activities", query)
		if err != nil {
			return nil, fmt.Errorf("failed to list activities (page %d): %w", page, err)
		}

		var items []struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("failed to decode activity page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}

		for i, item := range items {
			id, err := item.ID.Int64()
			if err != nil {
				return nil, fmt.Errorf("activity %d on page %d has no usable id: %w", i, page, err)
			}
			ids = append(ids, ActivityID(id))
		}
	}

	log.Printf("[CLIENT] Discovered %d activities", len(ids))
	return ids, nil
}

// GetActivity returns the detail record of one activity including its efforts
func (c *Client) GetActivity(ctx context.Context, id ActivityID) (Record, error) {
	body, err := c.Get(ctx, fmt.Sprintf("/activities/%d", id), url.Values{
		"include_all_efforts": {"true"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get activity %d: %w", id, err)
	}
	return decodeRecord(body)
}

// GetKudos returns the kudos given to one activity
func (c *Client) GetKudos(ctx context.Context, id ActivityID) ([]Record, error) {
	body, err := c.Get(ctx, fmt.Sprintf("/activities/%d/kudos", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get kudos for activity %d: %w", id, err)
	}
	return decodeRecords(body)
}

// GetComments returns the comments on one activity
func (c *Client) GetComments(ctx context.Context, id ActivityID) ([]Record, error) {
	body, err := c.Get(ctx, fmt.Sprintf("/activities/%d/comments", id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments for activity %d: %w", id, err)
	}
	return decodeRecords(body)
}

// GetAthlete returns the authenticated athlete
func (c *Client) GetAthlete(ctx context.Context) (Record, error) {
	body, err := c.Get(ctx, "/athlete", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get athlete: %w", err)
	}
	return decodeRecord(body)
}

func decodeRecord(body []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}

func decodeRecords(body []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var recs []Record
	if err := dec.Decode(&recs); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return recs, nil
}

// Int returns the integer stored under key, or 0 when it is absent or not a number
func (r Record) Int(key string) int64 {
	switch v := r[key].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

// Records returns the list of objects stored under key
func (r Record) Records(key string) ([]Record, bool) {
	raw, ok := r[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out, true
}
