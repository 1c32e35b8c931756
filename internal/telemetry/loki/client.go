// Package loki pushes consumed account events to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"identity-service/backend/internal/events"
)

// DefaultJob is the job label of every pushed stream.
const DefaultJob = "identity-service"

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // [timestamp_ns, line]
}

// Loki label values may hold anything, but these are kept to a safe set.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:.]`)

// Client pushes lines to one Loki instance.
type Client struct {
	pushURL string
	job     string
	http    *http.Client
	now     func() time.Time
}

// NewClient returns a client for the Loki at baseURL (e.g. http://localhost:3100).
func NewClient(baseURL, job string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("loki: base URL is empty")
	}
	if job == "" {
		job = DefaultJob
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		pushURL: strings.TrimSuffix(baseURL, "/") + "/loki/api/v1/push",
		job:     job,
		http:    httpClient,
		now:     time.Now,
	}, nil
}

// Deliver implements events.Sink. The stream is labeled with the event type and device; the
// entry time is the event's occurred_at. An undecodable event is pushed as-is at the current time.
func (c *Client) Deliver(ctx context.Context, e events.Event, raw []byte) error {
	labels := map[string]string{}
	ts := c.now()
	if e.Type != "" {
		labels["event_type"] = e.Type
		labels["device"] = strconv.Itoa(e.Device)
		if e.Provider != "" {
			labels["provider"] = e.Provider
		}
	}
	if !e.OccurredAt.IsZero() {
		ts = e.OccurredAt
	}
	return c.Push(ctx, ts, string(raw), labels)
}

// Push sends a single line. It fails when the request fails or Loki answers non-2xx.
func (c *Client) Push(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	streamLabels := make(map[string]string, len(labels)+1)
	streamLabels["job"] = c.job
	for k, v := range labels {
		if s := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); s != "" {
			streamLabels[k] = s
		}
	}
	payload, err := json.Marshal(PushRequest{
		Streams: []Stream{{
			Stream: streamLabels,
			Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
		}},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pushURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
