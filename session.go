package sfquery

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
)

// DefaultAPIVersion is the salesforce REST API version used when the caller
// does not pick one.
const DefaultAPIVersion = "35.0"

// Session bundles everything needed to authorize and address calls against
// a salesforce instance. It is an immutable value: query and CRUD operations
// only ever read it.
type Session struct {
	// AccessToken is the bearer credential issued by salesforce.
	AccessToken string

	// InstanceURL is the absolute origin of the instance the session was
	// granted for, e.g. https://na1.salesforce.com
	InstanceURL string

	// APIVersion selects the REST API version, e.g. "35.0".
	APIVersion string
}

// LoginConfig holds the credentials for the OAuth 2.0 password grant
// https://help.salesforce.com/articleView?id=remoteaccess_oauth_username_password_flow.htm
type LoginConfig struct {
	// AuthURL is the login server, https://login.salesforce.com by default.
	// Use https://test.salesforce.com for sandboxes.
	AuthURL string

	ClientID     string
	ClientSecret string
	Username     string

	// Password is the user's password with the security token appended,
	// if the org requires one.
	Password string
}

// LoginPassword performs the OAuth 2.0 password grant against cfg.AuthURL
// and returns the granted Session. Most callers want NewClientWithPassword,
// which also wires the session into a client.
func LoginPassword(ctx context.Context, cfg LoginConfig, httpClient http.Client) (Session, error) {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = "https://login.salesforce.com"
	}
	tokenURL := strings.TrimSuffix(authURL, "/") + "/services/oauth2/token"

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)
	form.Set("username", cfg.Username)
	form.Set("password", cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := httpClient.Do(req)
	if err != nil {
		return Session{}, err
	}
	resBytes, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return Session{}, err
	}

	switch res.StatusCode {
	case http.StatusOK:
		break
	case http.StatusBadRequest, http.StatusUnauthorized:
		var errRes OAuthErr
		if err := json.Unmarshal(resBytes, &errRes); err != nil {
			return Session{}, err
		}
		return Session{}, &errRes
	default:
		return Session{}, fmt.Errorf("%s responded with an unexpected HTTP status code: %d", tokenURL, res.StatusCode)
	}

	var tokenRes AccessTokenResponse
	if err := json.Unmarshal(resBytes, &tokenRes); err != nil {
		return Session{}, err
	}

	return Session{
		AccessToken: tokenRes.AccessToken,
		InstanceURL: strings.TrimSuffix(tokenRes.Instance, "/"),
		APIVersion:  DefaultAPIVersion,
	}, nil
}

// Option configures a client at construction time.
type Option func(*restClient)

// WithHTTPClient replaces the underlying HTTP client. Its configuration
// affects all HTTP requests made by the salesforce client, including the
// OAuth token requests.
func WithHTTPClient(httpClient http.Client) Option {
	return func(c *restClient) {
		c.client = httpClient
	}
}

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *restClient) {
		c.logger = logger
	}
}

// WithAPIVersion overrides DefaultAPIVersion.
func WithAPIVersion(version string) Option {
	return func(c *restClient) {
		c.apiVersion = version
	}
}

// WithInsecureSkipVerify disables TLS certificate verification for all
// requests. Only for instances whose certificate chain cannot be verified;
// verification stays on unless explicitly opted out.
func WithInsecureSkipVerify() Option {
	return func(c *restClient) {
		c.client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
}

// WithRecordEncoding re-encodes every query record field from UTF-8 to the
// given charset. A field the encoder cannot represent keeps its original
// UTF-8 value; a bad field never fails the page.
func WithRecordEncoding(enc encoding.Encoding) Option {
	return func(c *restClient) {
		c.recordEnc = enc
	}
}

// WithDebug logs every request URL and raw response body at debug level.
func WithDebug() Option {
	return func(c *restClient) {
		c.debug = true
	}
}
