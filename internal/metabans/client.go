// Package metabans is a client for the Metabans player reputation API.
//
// Every call is one form-encoded POST carrying one or more indexed
// requests. A call that produced a single response is unwrapped into its
// payload or a typed error; a batch is returned as-is for Classify.
package metabans

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultURL is the Metabans API endpoint.
const DefaultURL = "http://metabans.com/api"

// defaultOptions asks for a JSON body that mirrors each request and
// carries profiler timings.
const defaultOptions = "mirror,json,profiler"

// maxBodySize caps the response body read from the service.
const maxBodySize = 8 << 20

// Options configures a Client.
type Options struct {
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client

	// Logger receives request and response traces.
	Logger zerolog.Logger

	URL       string
	UserAgent string
	Username  string
	APIKey    string
	Timeout   time.Duration
}

// Client talks to one Metabans endpoint with one set of credentials.
// Credentials are fixed at construction, so a Client is safe to share.
type Client struct {
	http      *http.Client
	log       zerolog.Logger
	url       string
	userAgent string
	username  string
	apiKey    string
}

// New creates a Metabans API client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "mbrelay"
	}

	return &Client{
		http:      httpClient,
		log:       opts.Logger,
		url:       opts.URL,
		userAgent: opts.UserAgent,
		username:  opts.Username,
		apiKey:    opts.APIKey,
	}
}

// Query sends queries in one request.
//
// When the service answers with exactly one response, the result holds it
// if its status is OK; otherwise Query returns an *APIError (wrapping
// ErrAuthentication for code 5) or ErrUnexpectedResponse. When several
// responses come back they are returned unclassified.
func (c *Client) Query(ctx context.Context, queries []Query) (*Result, error) {
	if len(queries) == 0 {
		return nil, ErrEmptyBatch
	}

	responses, err := c.post(ctx, Encode(queries))
	if err != nil {
		return nil, err
	}

	switch len(responses) {
	case 0:
		return nil, fmt.Errorf("%w: empty responses list", ErrUnexpectedResponse)
	case 1:
		r := responses[0]
		c.log.Debug().
			Str("action", r.Action()).
			Str("status", r.Status).
			Int("code", r.ErrorCode()).
			Msg("Single response")

		if err := r.Err(); err != nil {
			return nil, err
		}

		return &Result{single: &r}, nil
	default:
		return &Result{batch: responses}, nil
	}
}

// post performs the HTTP round trip and decodes the response envelope.
func (c *Client) post(ctx context.Context, params url.Values) ([]Response, error) {
	params.Set("options", defaultOptions)
	if c.username != "" && c.apiKey != "" {
		params.Set("username", c.username)
		params.Set("apikey", c.apiKey)
	}

	c.log.Debug().
		Str("url", c.url).
		Str("params", redact(params)).
		Msg("Querying Metabans")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrHTTPRequestFailed, err)
	}

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: http status %d", ErrHTTPRequestFailed, resp.StatusCode)
	}

	c.log.Trace().Bytes("body", body).Msg("Received Metabans response")

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if env.Responses == nil {
		return nil, fmt.Errorf("%w: missing responses", ErrUnexpectedResponse)
	}

	return env.Responses, nil
}

// redact renders params for logging with the API key masked.
func redact(params url.Values) string {
	if params.Get("apikey") == "" {
		return params.Encode()
	}

	masked := make(url.Values, len(params))
	for k, v := range params {
		masked[k] = v
	}
	masked.Set("apikey", "***")

	return masked.Encode()
}

// PlayerStatus discovers the current status of a player. The status is
// nil when Metabans answered OK without data.
func (c *Client) PlayerStatus(ctx context.Context, gameName, playerUID string) (*PlayerStatus, error) {
	return c.queryStatus(ctx, StatusQuery(gameName, playerUID))
}

// SightPlayer tells Metabans a player was seen on the game server.
// groupName identifies the server when one account serves many.
func (c *Client) SightPlayer(ctx context.Context, gameName, groupName string, p Player) (*PlayerStatus, error) {
	return c.queryStatus(ctx, SightQuery(gameName, groupName, p))
}

// AssessPlayer sets an assessment on a player. A zero length means no expiry.
func (c *Client) AssessPlayer(
	ctx context.Context,
	gameName, playerUID string,
	t AssessmentType,
	length time.Duration,
	reason string,
) (*PlayerStatus, error) {
	return c.queryStatus(ctx, AssessQuery(gameName, playerUID, t, length, reason))
}

// AccountAvailability asks whether Metabans account names are still free.
func (c *Client) AccountAvailability(ctx context.Context, names ...string) ([]AccountAvailability, error) {
	queries := make([]Query, 0, len(names))
	for _, n := range names {
		queries = append(queries, AccountQuery(n))
	}

	res, err := c.Query(ctx, queries)
	if err != nil {
		return nil, err
	}

	out := make([]AccountAvailability, 0, len(names))
	for _, r := range res.Responses() {
		if err := r.Err(); err != nil {
			return nil, err
		}

		var a AccountAvailability
		if len(r.Data) > 0 {
			if err := json.Unmarshal(r.Data, &a); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
			}
		}
		out = append(out, a)
	}

	return out, nil
}

// SendBulk sends any mix of queries and classifies the responses.
func (c *Client) SendBulk(ctx context.Context, queries []Query) (BatchResult, error) {
	if len(queries) == 0 {
		return Classify(nil), nil
	}

	res, err := c.Query(ctx, queries)
	if err != nil {
		return BatchResult{}, err
	}

	return Classify(res.Responses()), nil
}

func (c *Client) queryStatus(ctx context.Context, q Query) (*PlayerStatus, error) {
	res, err := c.Query(ctx, []Query{q})
	if err != nil {
		return nil, err
	}

	if !res.HasData() {
		return nil, nil
	}

	var status PlayerStatus
	if err := res.Decode(&status); err != nil {
		return nil, err
	}

	return &status, nil
}
