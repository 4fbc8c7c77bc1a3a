package surveyapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Response is one survey response as delivered by the source survey system.
type Response struct {
	SurveyID    string                 `json:"survey_id"`
	ResponseID  string                 `json:"response_id"`
	Answers     map[string]interface{} `json:"answers"`
	SubmittedAt time.Time              `json:"submitted_at"`
}

// Config contains credentials for the source survey API.
type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int
}

// Client pulls survey responses over the source system's REST API.
type Client struct {
	baseURL  string
	apiKey   string
	pageSize int
	http     *http.Client
	logger   zerolog.Logger
}

// New constructs a survey API client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("survey api base url must be provided")
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With().Str("component", "surveyapi").Logger(),
	}, nil
}

// FetchResponses pulls all responses submitted after the given time, paging
// through the source API until it runs dry.
func (c *Client) FetchResponses(ctx context.Context, since time.Time) ([]Response, error) {
	var all []Response

	for page := 1; ; page++ {
		batch, err := c.fetchPage(ctx, since, page)
		if err != nil {
			return nil, err
		}

		all = append(all, batch...)
		if len(batch) < c.pageSize {
			break
		}
	}

	c.logger.Debug().Int("count", len(all)).Time("since", since).Msg("fetched survey responses")

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, since time.Time, page int) ([]Response, error) {
	endpoint, err := url.Parse(c.baseURL + "/responses")
	if err != nil {
		return nil, fmt.Errorf("invalid survey api url: %w", err)
	}

	query := endpoint.Query()
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(c.pageSize))
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("survey api request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("survey api returned status %d", resp.StatusCode)
	}

	var payload struct {
		Responses []Response `json:"responses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode survey api response: %w", err)
	}

	return payload.Responses, nil
}
