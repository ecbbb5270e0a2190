package routing

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DurationService returns the road travel time in seconds between two
// coordinates. Implementations are treated as pure functions of their four
// inputs, which is what makes caching them safe.
type DurationService interface {
	OneToMany(fromLat, fromLng, toLat, toLng float64) (int64, error)
}

// Client calls the Motis routing service's one-to-many endpoint for a single
// best CAR route between two points
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a new routing client. An empty baseURL falls back to the
// local Motis default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:6499"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

// oneToManyEntry is one destination's result in the Motis response array
type oneToManyEntry struct {
	Duration float64 `json:"duration"`
}

// OneToMany looks up the routed travel time in seconds from one coordinate to
// another. An unreachable service, a non-2xx status or an empty result set is
// returned as an error; callers treat that as "lookup unavailable", not as a
// mismatch.
func (c *Client) OneToMany(fromLat, fromLng, toLat, toLng float64) (int64, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to parse routing base URL: %w", err)
	}
	u.Path = "/api/v1/one-to-many"

	q := u.Query()
	q.Set("one", coordPair(fromLat, fromLng))
	q.Set("many", coordPair(toLat, toLng))
	q.Set("mode", "CAR")
	q.Set("max", "3600")
	q.Set("maxMatchingDistance", "200")
	q.Set("arriveBy", "false")
	u.RawQuery = q.Encode()

	resp, err := c.httpc.Get(u.String())
	if err != nil {
		return 0, fmt.Errorf("failed to call routing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return 0, fmt.Errorf("routing service returned status %d", resp.StatusCode)
	}

	var entries []oneToManyEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return 0, fmt.Errorf("failed to decode routing response: %w", err)
	}

	if len(entries) == 0 {
		return 0, fmt.Errorf("routing service found no route")
	}

	return int64(math.Round(entries[0].Duration)), nil
}

// coordPair formats a coordinate the way the Motis API expects ("lat;lng")
func coordPair(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + ";" + strconv.FormatFloat(lng, 'f', -1, 64)
}
