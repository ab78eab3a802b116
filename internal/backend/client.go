package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dayahead/daocfg/internal/logging"
	"github.com/dayahead/daocfg/internal/schema"
	"github.com/dayahead/daocfg/internal/version"
	"go.uber.org/zap"
)

const (
	// DefaultPort is the port the DAO webserver listens on
	DefaultPort = 5000

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultCacheDuration is how long a full entity fetch stays fresh
	DefaultCacheDuration = 5 * time.Minute

	// DefaultPatternParam is the query parameter carrying the search text
	DefaultPatternParam = "pattern"

	// maxBodySize caps response bodies; the full entity list of a large
	// Home Assistant install is a few hundred KB.
	maxBodySize = 16 << 20
)

var documentNameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Client talks to the DAO webserver's REST API and owns the entity cache.
type Client struct {
	// BaseURL is the webserver root, e.g. "http://homeassistant.local:5000"
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// CacheDuration is how long FetchAll results are reused (0 = no cache)
	CacheDuration time.Duration

	// PatternParam is the search query parameter name ("pattern" or "q")
	PatternParam string

	// Now is the clock used for cache ageing
	Now func() time.Time

	// cachedEntities is the last full entity list
	cachedEntities []Entity

	// cacheTime is when the cache was last filled
	cacheTime time.Time

	// cacheMutex protects the cache fields
	cacheMutex sync.RWMutex
}

// NewClient creates a client for the webserver at host:port
func NewClient(host string, port int) *Client {
	return NewClientWithURL(fmt.Sprintf("http://%s:%d", host, port))
}

// NewClientWithURL creates a client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		CacheDuration: DefaultCacheDuration,
		PatternParam:  DefaultPatternParam,
		Now:           time.Now,
	}
}

// NormalizeBaseURL turns user input such as "dao.local" or
// "10.0.0.5:5000" into a webserver root URL. A missing scheme becomes http
// and a missing port becomes DefaultPort.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", NewMalformedInputError("webserver address is empty", nil)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", NewMalformedInputError(fmt.Sprintf("%q is not a webserver address", raw), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", NewMalformedInputError(fmt.Sprintf("unsupported scheme %q", u.Scheme), nil)
	}
	if u.Port() == "" {
		u.Host = fmt.Sprintf("%s:%d", u.Host, DefaultPort)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

func (c *Client) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// FetchAll returns every entity known to Home Assistant. A cached list is
// returned while it is younger than CacheDuration, unless forceRefresh is set.
// On failure the cache is left untouched.
func (c *Client) FetchAll(ctx context.Context, forceRefresh bool) ([]Entity, error) {
	if !forceRefresh && c.CacheDuration > 0 {
		c.cacheMutex.RLock()
		if c.cachedEntities != nil {
			age := c.now().Sub(c.cacheTime)
			if age < c.CacheDuration {
				cached := append([]Entity(nil), c.cachedEntities...)
				c.cacheMutex.RUnlock()
				logging.LogCacheEvent("hit", len(cached), age)
				return cached, nil
			}
		}
		c.cacheMutex.RUnlock()
	}

	const op = "fetch entities"
	var entities []Entity
	if err := c.getEntityList(ctx, op, "/api/ha/entities", nil, &entities); err != nil {
		return nil, err
	}
	if entities == nil {
		entities = []Entity{}
	}

	c.cacheMutex.Lock()
	c.cachedEntities = entities
	c.cacheTime = c.now()
	c.cacheMutex.Unlock()
	logging.LogCacheEvent("fill", len(entities), 0)

	return append([]Entity(nil), entities...), nil
}

// Search asks the webserver for entities matching pattern within the
// comma-separated domainFilter. It never reads or writes the cache.
func (c *Client) Search(ctx context.Context, domainFilter, pattern string) ([]Entity, error) {
	param := c.PatternParam
	if param == "" {
		param = DefaultPatternParam
	}
	query := url.Values{}
	query.Set("domain", domainFilter)
	query.Set(param, pattern)

	start := time.Now()
	var entities []Entity
	if err := c.getEntityList(ctx, "search entities", "/api/ha/entities/search", query, &entities); err != nil {
		return nil, err
	}
	logging.LogSearch(domainFilter, pattern, len(entities), time.Since(start))
	if entities == nil {
		entities = []Entity{}
	}
	return entities, nil
}

// CachedEntities returns the cached entity list regardless of age, and when
// it was fetched. The list is nil when nothing was fetched yet.
func (c *Client) CachedEntities() ([]Entity, time.Time) {
	c.cacheMutex.RLock()
	defer c.cacheMutex.RUnlock()
	if c.cachedEntities == nil {
		return nil, time.Time{}
	}
	return append([]Entity(nil), c.cachedEntities...), c.cacheTime
}

// InvalidateCache clears the cached entity list
func (c *Client) InvalidateCache() {
	c.cacheMutex.Lock()
	n := len(c.cachedEntities)
	c.cachedEntities = nil
	c.cacheTime = time.Time{}
	c.cacheMutex.Unlock()
	logging.LogCacheEvent("invalidate", n, 0)
}

// FilterByDomain returns cached entities whose domain is in the
// comma-separated domain list. It does no I/O.
func (c *Client) FilterByDomain(domainFilter string) []Entity {
	domains := ParseDomainFilter(domainFilter)

	c.cacheMutex.RLock()
	defer c.cacheMutex.RUnlock()

	var out []Entity
	for _, e := range c.cachedEntities {
		if e.MatchesDomain(domains) {
			out = append(out, e)
		}
	}
	return out
}

// Prefetch warms the cache and reports whether it succeeded. Failures are
// logged only; autocomplete works without a warm cache.
func (c *Client) Prefetch(ctx context.Context) bool {
	entities, err := c.FetchAll(ctx, false)
	if err != nil {
		logging.Warn("Entity prefetch failed", zap.Error(err))
		return false
	}
	logging.Debug("Entity prefetch complete", zap.Int("entities", len(entities)))
	return true
}

// SecretKeys returns the sorted keys of secrets.json. Values are dropped
// here and never leave this function.
func (c *Client) SecretKeys(ctx context.Context) ([]string, error) {
	const op = "load secrets"
	body, err := c.do(ctx, op, http.MethodGet, "/api/settings/secrets.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var secrets map[string]json.RawMessage
	if err := json.Unmarshal(body, &secrets); err != nil {
		return nil, NewParseError(op, "secrets.json is not an object", err)
	}

	keys := make([]string, 0, len(secrets))
	for k := range secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// GetSettings downloads a settings document ("options", "secrets").
func (c *Client) GetSettings(ctx context.Context, name string) (json.RawMessage, error) {
	if err := ValidDocumentName(name); err != nil {
		return nil, err
	}
	op := "load " + name
	body, err := c.do(ctx, op, http.MethodGet, "/api/settings/"+name+".json", nil, nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, NewParseError(op, name+".json is not valid JSON", nil)
	}
	return json.RawMessage(body), nil
}

// SaveSettings uploads a settings document. The webserver answers
// {"success": true} or {"error": "..."}.
func (c *Client) SaveSettings(ctx context.Context, name string, doc json.RawMessage) error {
	if err := ValidDocumentName(name); err != nil {
		return err
	}
	if !json.Valid(doc) {
		return NewMalformedInputError("document is not valid JSON", nil)
	}

	op := "save " + name
	body, err := c.do(ctx, op, http.MethodPost, "/api/settings/"+name+".json", nil, doc)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return NewParseError(op, "unexpected save response", err)
	}
	if result.Error != "" {
		return NewErrorPayloadError(op, http.StatusOK, result.Error)
	}
	if !result.Success {
		return NewErrorPayloadError(op, http.StatusOK, "webserver did not confirm the save")
	}
	return nil
}

// GetSchema downloads and parses the settings schema.
func (c *Client) GetSchema(ctx context.Context) (*schema.Schema, error) {
	const op = "load schema"
	body, err := c.do(ctx, op, http.MethodGet, "/api/schema", nil, nil)
	if err != nil {
		return nil, err
	}
	s, err := schema.Parse(body)
	if err != nil {
		return nil, NewParseError(op, "invalid settings schema", err)
	}
	return s, nil
}

// ValidDocumentName rejects names that would escape /api/settings/.
func ValidDocumentName(name string) error {
	if !documentNameRe.MatchString(name) {
		return NewMalformedInputError(fmt.Sprintf("invalid document name %q", name), nil)
	}
	return nil
}

// getEntityList fetches an entity array. Every failure, including an error
// payload delivered with 200, becomes ErrTypeIndexUnavailable.
func (c *Client) getEntityList(ctx context.Context, op, path string, query url.Values, out *[]Entity) error {
	body, err := c.do(ctx, op, http.MethodGet, path, query, nil)
	if err != nil {
		return NewIndexUnavailableError(op, err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if msg, ok := errorPayload(trimmed); ok {
			return NewIndexUnavailableError(op, NewErrorPayloadError(op, http.StatusOK, msg))
		}
		return NewIndexUnavailableError(op, NewParseError(op, "expected an entity list", nil))
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		return NewIndexUnavailableError(op, NewParseError(op, "failed to parse entity list", err))
	}
	return nil
}

// do performs one request and returns the body of a 2xx response. There are
// no retries; callers surface failures to the user.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload []byte) ([]byte, error) {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, NewNetworkError(op, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		berr := NewNetworkError(op, "webserver unreachable", err)
		logging.LogHTTPRequest(method, endpoint, 0, time.Since(start), berr)
		return nil, berr
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		berr := NewNetworkError(op, "failed to read response", err)
		logging.LogHTTPRequest(method, endpoint, resp.StatusCode, time.Since(start), berr)
		return nil, berr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var berr *BackendError
		if msg, ok := errorPayload(body); ok {
			berr = NewErrorPayloadError(op, resp.StatusCode, msg)
		} else {
			berr = NewHTTPError(op, resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
		}
		logging.LogHTTPRequest(method, endpoint, resp.StatusCode, time.Since(start), berr)
		return nil, berr
	}

	logging.LogHTTPRequest(method, endpoint, resp.StatusCode, time.Since(start), nil)
	return body, nil
}

// errorPayload extracts the message of an {"error": "..."} body.
func errorPayload(body []byte) (string, bool) {
	var payload struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil {
		return "", false
	}
	switch v := payload.Error.(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}
