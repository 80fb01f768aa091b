package twitterapi

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"friendgeo/internal/httpapi"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/models"
)

const (
	// DefaultBaseURL is the hosted social graph API
	DefaultBaseURL = "https://api.twitterapi.io/twitter"
	// PageSize is the largest page the listing endpoints serve
	PageSize = 200

	followersPath  = "/user/followers"
	followingsPath = "/user/followings"
)

// Client implements graph.GraphSource over the hosted follower API
type Client struct {
	api    *httpapi.Client
	logger logger.Logger
}

// NewClient creates a client authenticated with apiKey
func NewClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	log = log.WithField("provider", "twitterapi")
	api := httpapi.New(baseURL, timeout, log)
	api.SetHeader("X-API-Key", apiKey)
	return &Client{api: api, logger: log}
}

// HTTP exposes the underlying client so tests can swap its transport
func (c *Client) HTTP() *httpapi.Client {
	return c.api
}

type apiUser struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Location string `json:"location"`
}

type listResponse struct {
	Followers   []apiUser `json:"followers"`
	Followings  []apiUser `json:"followings"`
	HasNextPage bool      `json:"has_next_page"`
	NextCursor  string    `json:"next_cursor"`
	Status      string    `json:"status"`
	Message     string    `json:"msg"`
}

// FetchGraph returns one page of userID's followers or followings
func (c *Client) FetchGraph(ctx context.Context, userID string, direction models.Direction, cursor string) (models.GraphPage, error) {
	var path string
	switch direction {
	case models.Followers:
		path = followersPath
	case models.Following:
		path = followingsPath
	default:
		return models.GraphPage{}, errs.Validation("unknown graph direction %q", direction)
	}

	q := url.Values{}
	q.Set("userId", userID)
	q.Set("pageSize", strconv.Itoa(PageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var resp listResponse
	if err := c.api.GetJSON(ctx, c.api.URL(path, q), &resp); err != nil {
		c.logger.DebugWithFields("graph page request failed", map[string]interface{}{
			"user_id":   userID,
			"direction": string(direction),
			"error":     err.Error(),
		})
		return models.GraphPage{}, err
	}

	// the API reports some failures in a 200 body
	if resp.Status == "error" {
		return models.GraphPage{}, errs.New(errs.ErrorTypeServerError, "graph API error: "+resp.Message)
	}

	users := resp.Followers
	if direction == models.Following {
		users = resp.Followings
	}

	page := models.GraphPage{Users: make([]models.ProfileSnippet, 0, len(users))}
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		page.Users = append(page.Users, models.ProfileSnippet{
			ID:          u.ID,
			Username:    u.UserName,
			RawLocation: u.Location,
		})
	}

	// "0" and "" both mark the last page
	if resp.HasNextPage && resp.NextCursor != "" && resp.NextCursor != "0" {
		page.HasMore = true
		page.NextCursor = resp.NextCursor
	}

	c.logger.DebugWithFields("fetched graph page", map[string]interface{}{
		"user_id":   userID,
		"direction": string(direction),
		"users":     len(page.Users),
		"has_more":  page.HasMore,
	})
	return page, nil
}
