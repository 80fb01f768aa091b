package gmaps

import (
	"context"
	"net/url"
	"time"

	"friendgeo/internal/httpapi"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/geocode"
	"friendgeo/pkg/logger"
)

// DefaultBaseURL is the Google Geocoding JSON endpoint
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Client implements geocode.Geocoder over the Google Geocoding API
type Client struct {
	api    *httpapi.Client
	key    string
	region string
	logger logger.Logger
}

// NewClient creates a geocoder. region biases ambiguous names ("us" by
// default upstream) and may be empty.
func NewClient(baseURL, apiKey, region string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	log = log.WithField("provider", "gmaps")
	return &Client{
		api:    httpapi.New(baseURL, timeout, log),
		key:    apiKey,
		region: region,
		logger: log,
	}
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type geocodeResult struct {
	AddressComponents []addressComponent `json:"address_components"`
	FormattedAddress  string             `json:"formatted_address"`
	Geometry          struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	PartialMatch bool `json:"partial_match"`
}

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Results      []geocodeResult `json:"results"`
}

// Geocode resolves text to a place. Unresolvable text is a Result with
// Found false, not an error.
func (c *Client) Geocode(ctx context.Context, text string) (geocode.Result, error) {
	q := url.Values{}
	q.Set("address", text)
	q.Set("key", c.key)
	if c.region != "" {
		q.Set("region", c.region)
	}

	var resp geocodeResponse
	if err := c.api.GetJSON(ctx, c.api.URL("", q), &resp); err != nil {
		return geocode.Result{}, err
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return geocode.Result{}, nil
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		c.logger.WarnWithFields("geocoder quota exceeded", map[string]interface{}{
			"status": resp.Status,
		})
		return geocode.Result{}, errs.RateLimited(statusMessage(resp))
	case "REQUEST_DENIED", "INVALID_REQUEST":
		// a bad key or malformed request fails the same way for every string
		return geocode.Result{}, errs.Fatal(statusMessage(resp))
	default:
		return geocode.Result{}, errs.New(errs.ErrorTypeServerError, statusMessage(resp))
	}

	if len(resp.Results) == 0 {
		return geocode.Result{}, nil
	}
	res := Parse(resp.Results[0])
	c.logger.DebugWithFields("geocoded", map[string]interface{}{
		"text":  text,
		"place": res.Place,
		"level": string(res.Level),
	})
	return res, nil
}

func statusMessage(resp geocodeResponse) string {
	if resp.ErrorMessage != "" {
		return "geocoder " + resp.Status + ": " + resp.ErrorMessage
	}
	return "geocoder " + resp.Status
}
