package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/cmgrayb/libdyson-rest/account"
)

const (
	defaultCountry   = "US"
	defaultCulture   = "en-US"
	defaultUserAgent = "android client"
	defaultTimeout   = 30 * time.Second

	localCredentialsKeySize = 32
	localCredentialsIVSize  = 16
)

// Doer executes one HTTP exchange. It is the boundary with the transport
// layer: TLS, pooling, timeouts and cancellation live behind it, and any
// error it returns surfaces as a *TransportError.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config carries the construction parameters for a Client. The zero value of
// every field is usable; defaults are applied by New.
type Config struct {
	// Email is the account email address. Leave empty when authenticating
	// with a mobile number or a pre-issued token.
	Email string
	// Mobile is the account mobile number with mandatory country-code
	// prefix, e.g. "+8613800000000". Only valid with Country "CN".
	Mobile string
	// Password is the account password, included in the email verify call
	// when set.
	Password string
	// Country selects the regional backend. Defaults to "US".
	Country string
	// Culture is the locale sent on begin-login. Defaults to "en-US".
	Culture string
	// AuthToken seeds the credential vault with a previously exported
	// bearer token, skipping the login flow entirely.
	AuthToken string
	// BaseURL overrides the region-derived API host. Mainly for tests.
	BaseURL string
	// UserAgent overrides the default client identification header.
	UserAgent string
	// HTTPClient overrides the default transport.
	HTTPClient Doer
	// Logger receives diagnostic output. Defaults to a no-op logger.
	Logger *zap.Logger
	// LocalCredentialsKey overrides the fixed 256-bit device credential
	// key. 32 bytes.
	LocalCredentialsKey []byte
	// LocalCredentialsIV overrides the CBC initialization vector. 16 bytes.
	LocalCredentialsIV []byte
}

// Client is a protocol client for one account against one regional backend.
//
// A Client instance must be driven by a single logical flow of control at a
// time: the login state (tracked challenge ID, vault) is not protected by a
// lock, and two concurrent begin/complete pairs would silently invalidate
// each other. Use one Client per account. DecryptLocalCredentials and the
// token accessors are pure and safe to call from anywhere.
type Client struct {
	identifier account.Identifier
	hasIdent   bool
	password   string
	country    string
	culture    string
	baseURL    string
	userAgent  string
	http       Doer
	log        *zap.Logger
	key        []byte
	iv         []byte

	state       authState
	challengeID string
	token       string
	accountID   string
	provisioned bool
}

// New builds a Client from cfg. The identifier is classified eagerly, so a
// mobile number outside the CN region fails here with
// *account.InvalidIdentifierError before any network call can happen.
func New(cfg Config) (*Client, error) {
	if cfg.Email != "" && cfg.Mobile != "" {
		return nil, &account.InvalidIdentifierError{Reason: "configure either Email or Mobile, not both"}
	}

	country := cfg.Country
	if country == "" {
		country = defaultCountry
	}

	c := &Client{
		password:  cfg.Password,
		country:   country,
		culture:   cfg.Culture,
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		http:      cfg.HTTPClient,
		log:       cfg.Logger,
		key:       cfg.LocalCredentialsKey,
		iv:        cfg.LocalCredentialsIV,
		state:     authUnstarted,
	}

	raw := cfg.Email
	if cfg.Mobile != "" {
		raw = cfg.Mobile
	}
	if raw != "" {
		ident, err := account.Resolve(raw, country)
		if err != nil {
			return nil, err
		}
		c.identifier = ident
		c.hasIdent = true
	}

	if c.culture == "" {
		c.culture = defaultCulture
	}
	if c.baseURL == "" {
		c.baseURL = account.APIHost(country)
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.http == nil {
		c.http = newDefaultHTTPClient()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.key == nil {
		c.key = defaultLocalCredentialsKey()
	}
	if c.iv == nil {
		c.iv = make([]byte, localCredentialsIVSize)
	}
	if len(c.key) != localCredentialsKeySize {
		return nil, fmt.Errorf("local credentials key must be %d bytes, got %d", localCredentialsKeySize, len(c.key))
	}
	if len(c.iv) != localCredentialsIVSize {
		return nil, fmt.Errorf("local credentials IV must be %d bytes, got %d", localCredentialsIVSize, len(c.iv))
	}

	if cfg.AuthToken != "" {
		c.SetAuthToken(cfg.AuthToken)
	}

	return c, nil
}

// newDefaultHTTPClient builds the stock transport: pooled, TLS 1.2 minimum,
// 30 second overall timeout.
func newDefaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
		Timeout: defaultTimeout,
	}
}

// Provision performs the initial capability handshake and returns the
// backend-reported API version. It must be called once before the login
// endpoints are used; the backend rejects login calls from unprovisioned
// clients. The call is idempotent.
func (c *Client) Provision(ctx context.Context) (string, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/v1/provisioningservice/application/Android/version", nil, nil, false)
	if err != nil {
		return "", err
	}
	var version string
	if err := json.Unmarshal(body, &version); err != nil {
		return "", &APIError{StatusCode: http.StatusOK, Msg: "provision response is not a version string: " + err.Error()}
	}
	c.provisioned = true
	c.log.Debug("provisioned API access", zap.String("version", version))
	return version, nil
}

// Provisioned reports whether Provision has completed successfully on this
// instance. Informational only; no call is gated on it locally.
func (c *Client) Provisioned() bool { return c.provisioned }

// doJSON performs one logical request against the backend. It serializes
// reqBody when non-nil, attaches the bearer token when authed is set, and
// maps the response status onto the error taxonomy: 401/403 to
// ErrAuthUnauthorized, other 4xx to ErrAuthRejected, remaining non-2xx to
// *APIError. Connection-level failures come back as *TransportError.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, reqBody any, authed bool) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debug("API request", zap.String("method", method), zap.String("path", path))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	c.log.Debug("API response", zap.String("path", path), zap.Int("status", resp.StatusCode))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, unauthorized("%s %s: status %d", method, path, resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, rejected("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(body, 256))
	default:
		return nil, &APIError{StatusCode: resp.StatusCode, Msg: truncate(body, 256)}
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
