package carsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// restRemoteStore talks to the shared backend database through its
// PostgREST-style row API. Errors come back with Postgres SQLSTATE codes,
// which is what the driver's recovery policies classify on.
type restRemoteStore struct {
	baseURL     string
	apiKey      string
	accessToken string
	http        *http.Client
	limiter     <-chan time.Time
}

func NewRemoteStore() (RemoteStore, error) {
	baseURL := strings.TrimSpace(os.Getenv("REMOTE_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("REMOTE_API_BASE_URL is not set")
	}
	apiKey := strings.TrimSpace(os.Getenv("REMOTE_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("REMOTE_API_KEY is not set")
	}
	accessToken := strings.TrimSpace(os.Getenv("REMOTE_ACCESS_TOKEN"))
	if accessToken == "" {
		accessToken = apiKey
	}

	rateLimitPerMin := int64(120)
	if v := strings.TrimSpace(os.Getenv("REMOTE_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &restRemoteStore{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		accessToken: accessToken,
		http:        &http.Client{Timeout: 30 * time.Second},
		limiter:     time.Tick(interval),
	}, nil
}

// AuthValid reports whether the session token is still usable. The token is
// only inspected, not verified; the backend does the real check. A lapsed
// token classifies as transient: draining pauses until it is refreshed.
func (c *restRemoteStore) AuthValid() bool {
	if c.accessToken == c.apiKey {
		// Anon key access has no expiry of its own.
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(c.accessToken, claims); err != nil {
		return false
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return true
	}
	return time.Now().Unix() < int64(exp)
}

func (c *restRemoteStore) Upsert(ctx context.Context, table string, id string, payload map[string]interface{}) error {
	endpoint := c.baseURL + "/rest/v1/" + table
	body, err := json.Marshal([]map[string]interface{}{payload})
	if err != nil {
		return err
	}
	headers := map[string]string{
		"Prefer": "resolution=merge-duplicates,return=minimal",
	}
	_, err = c.do(ctx, http.MethodPost, endpoint, body, headers)
	return err
}

func (c *restRemoteStore) Update(ctx context.Context, table string, id string, fields map[string]interface{}) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?id=eq.%s", c.baseURL, table, url.QueryEscape(id))
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	headers := map[string]string{
		"Prefer": "return=minimal",
	}
	_, err = c.do(ctx, http.MethodPatch, endpoint, body, headers)
	return err
}

func (c *restRemoteStore) Delete(ctx context.Context, table string, id string) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?id=eq.%s", c.baseURL, table, url.QueryEscape(id))
	_, err := c.do(ctx, http.MethodDelete, endpoint, nil, nil)
	return err
}

func (c *restRemoteStore) FindBy(ctx context.Context, table string, column string, value string) (map[string]interface{}, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s=eq.%s&limit=1", c.baseURL, table, url.QueryEscape(column), url.QueryEscape(value))
	body, err := c.do(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (c *restRemoteStore) do(ctx context.Context, method string, endpoint string, body []byte, headers map[string]string) ([]byte, error) {
	<-c.limiter

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	remoteErr := &RemoteError{}
	if jerr := json.Unmarshal(respBody, remoteErr); jerr == nil && remoteErr.Code != "" {
		return nil, remoteErr
	}
	return nil, fmt.Errorf("remote api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
}
