package locations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// User is a tracked subject as listed by the location API
type User struct {
	Name string `json:"name"`
}

// APIError is returned for non-2xx responses of the location API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("location api error %d: %s", e.StatusCode, e.Body)
}

// IsUnauthorized reports whether the location API rejected the credentials
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// Client fetches subjects and their ping history from the remote location API
type Client struct {
	BaseURL    string
	Password   string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// NewClient creates a location API client with a request timeout
func NewClient(baseURL, password string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Password:   password,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// Users lists the subjects known to the location API keyed by subject id
func (c *Client) Users(ctx context.Context) (map[string]User, error) {
	var users map[string]User
	if err := c.getJSON(ctx, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SubjectByName resolves a subject's display name to its id
func (c *Client) SubjectByName(ctx context.Context, name string) (string, error) {
	users, err := c.Users(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list users: %w", err)
	}

	for id, user := range users {
		if user.Name == name {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSubjectNotFound, name)
}

// LocationsInTimespan fetches the pings of the given subjects between from and to (inclusive)
func (c *Client) LocationsInTimespan(ctx context.Context, subjectIDs []string, from, to time.Time) (Series, error) {
	params := url.Values{}
	params.Set("users", strings.Join(subjectIDs, ","))
	params.Set("from", strconv.FormatInt(from.UnixMilli(), 10))
	params.Set("to", strconv.FormatInt(to.UnixMilli(), 10))

	var series Series
	if err := c.getJSON(ctx, "/locations", params, &series); err != nil {
		return nil, err
	}
	if series == nil {
		series = Series{}
	}
	return series, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, target interface{}) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid location api url: %w", err)
	}
	joined, err := url.JoinPath(u.Path, path)
	if err != nil {
		return err
	}
	u.Path = joined
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	if c.Password != "" {
		req.Header.Set("Authorization", "Bearer "+c.Password)
	}
	req.Header.Set("Accept", "application/json")

	if c.Logger != nil {
		c.Logger.WithFields(logrus.Fields{
			"component": "locations",
			"method":    req.Method,
			"path":      u.Path,
		}).Debug("location api request")
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("location api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	return nil
}
