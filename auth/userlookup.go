package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// HTTPUserLookup asks a user service whether an id exists: 2xx means yes,
// 404 means no, anything else is an error.
type HTTPUserLookup struct {
	// BaseURL is joined with the escaped user id, e.g. https://api/users/{id}.
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewHTTPUserLookup(baseURL, token string) (*HTTPUserLookup, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, errors.Wrap(err, "invalid user lookup url")
	}
	return &HTTPUserLookup{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (l *HTTPUserLookup) UserExists(ctx context.Context, userID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.BaseURL+"/"+url.PathEscape(userID), nil)
	if err != nil {
		return false, errors.Wrap(err, "build user lookup request")
	}
	if l.Token != "" {
		req.Header.Set("Authorization", "Bearer "+l.Token)
	}

	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "user lookup")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, fmt.Errorf("user lookup: unexpected status %d", resp.StatusCode)
	}
}
