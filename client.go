package sfquery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
)

// Client is a salesforce REST API client bound to one instance.
type Client interface {
	// Session returns the session the client currently operates under.
	Session() Session

	// SendRequest sends an HTTP request to the instance as specified by its
	// function parameters. If the server responds with an unauthorized 401
	// HTTP status code, the client attempts to get a new access token and
	// retries the same request one more time.
	SendRequest(ctx context.Context, method, relURL string, headers http.Header, requestBody []byte) (int, []byte, error)

	// Query runs a SOQL query, following the server's pagination until the
	// full result set is accumulated.
	Query(ctx context.Context, soql string) ([]Record, error)

	// Single-record sobject operations.
	Create(ctx context.Context, sobject string, fields map[string]any) (string, error)
	Retrieve(ctx context.Context, sobject, id string, fields []string) (Record, error)
	Update(ctx context.Context, sobject, id string, fields map[string]any) error
	Upsert(ctx context.Context, sobject, externalIDField, externalID string, fields map[string]any) error
	Delete(ctx context.Context, sobject, id string) error
}

type restClient struct {
	// Underlying http client used for making all HTTP requests to salesforce
	// note that the configuration of this HTTP client will affect all HTTP
	// requests done by this struct (including the OAuth requests)
	client http.Client

	// URL of server where the salesforce organization lives
	instanceURL string
	apiVersion  string

	// Cached access token issued by Salesforce
	accessToken      string
	accessTokenMutex *sync.RWMutex

	// refresh renews the access token after an unauthorized response.
	// Nil when the session was handed in statically and cannot be renewed.
	refresh func(ctx context.Context) (string, error)

	// recordEnc, when set, is the target charset query record fields are
	// re-encoded to.
	recordEnc encoding.Encoding

	debug  bool
	logger *zap.Logger
}

var _ Client = &restClient{}

// NewClient builds a client around an existing session, e.g. one obtained
// from LoginPassword. The session cannot be renewed, so a 401 from
// salesforce surfaces directly as an *APIError.
func NewClient(session Session, opts ...Option) Client {
	return newRestClient(session, opts...)
}

// NewClientWithPassword logs in via the OAuth 2.0 password grant and builds
// a client around the granted session. On a 401 API response the client
// re-runs the grant once and retries the request.
func NewClientWithPassword(ctx context.Context, cfg LoginConfig, opts ...Option) (Client, error) {
	c := newRestClient(Session{}, opts...)

	session, err := LoginPassword(ctx, cfg, c.client)
	if err != nil {
		return nil, err
	}
	c.instanceURL = session.InstanceURL
	c.accessToken = session.AccessToken

	c.refresh = func(ctx context.Context) (string, error) {
		session, err := LoginPassword(ctx, cfg, c.client)
		if err != nil {
			return "", err
		}
		return session.AccessToken, nil
	}

	return c, nil
}

func newRestClient(session Session, opts ...Option) *restClient {
	c := &restClient{
		client:           http.Client{},
		instanceURL:      strings.TrimSuffix(session.InstanceURL, "/"),
		apiVersion:       session.APIVersion,
		accessToken:      session.AccessToken,
		accessTokenMutex: &sync.RWMutex{},
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	return c
}

func (c *restClient) Session() Session {
	c.accessTokenMutex.RLock()
	token := c.accessToken
	c.accessTokenMutex.RUnlock()
	return Session{
		AccessToken: token,
		InstanceURL: c.instanceURL,
		APIVersion:  c.apiVersion,
	}
}

// SendRequest sends an HTTP request as specified by its function parameters
// If the server responds with an unauthorized 401 HTTP status code, the client
// attempts to get a new access token and retries the request once
func (c *restClient) SendRequest(ctx context.Context, method, relURL string, headers http.Header, requestBody []byte) (int, []byte, error) {
	url := c.instanceURL + relURL

	// Issue the request to salesforce
	statusCode, resBody, err := c.sendRequest(ctx, method, url, headers, requestBody)
	if err != nil {
		// Check if the error is an actual salesforce API error
		// see: https://developer.salesforce.com/docs/atlas.en-us.api_rest.meta/api_rest/errorcodes.htm
		if _, ok := err.(*APIError); ok {
			// If the status code returned is Unauthorized (401)
			// Presumably, the current cached access token has expired,
			// hence, we attempt to renew the cached access token and retry the request once
			if statusCode == http.StatusUnauthorized && c.refresh != nil {
				c.logger.Debug("Current salesforce access token expired or invalid, requesting a new one", zap.Error(err))
				token, err := c.refresh(ctx)
				if err != nil {
					return statusCode, nil, err
				}
				c.accessTokenMutex.Lock()
				c.accessToken = token
				c.accessTokenMutex.Unlock()
				// Retry the original request
				statusCode, resBody, err = c.sendRequest(ctx, method, url, headers, requestBody)
				if err != nil {
					return statusCode, nil, err
				}
				return statusCode, resBody, nil
			}
		}
		return statusCode, nil, err
	}

	return statusCode, resBody, nil
}

func (c *restClient) sendRequest(ctx context.Context, method, url string, headers http.Header, requestBody []byte) (int, []byte, error) {
	var req *http.Request
	var err error
	if requestBody == nil {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(requestBody))
	}
	if err != nil {
		return -1, nil, err
	}

	c.accessTokenMutex.RLock()
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.accessToken))
	c.accessTokenMutex.RUnlock()
	for hKey, hVals := range headers {
		for _, hVal := range hVals {
			req.Header.Add(hKey, hVal)
		}
	}

	if c.debug {
		c.logger.Debug("Sending request to salesforce",
			zap.String("method", method),
			zap.String("url", url),
		)
	}

	start := time.Now()
	res, err := c.client.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(method, "error").Inc()
		return -1, nil, err
	}
	resBytes, err := io.ReadAll(res.Body)
	res.Body.Close()
	requestsTotal.WithLabelValues(method, strconv.Itoa(res.StatusCode)).Inc()
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return -1, nil, err
	}

	if c.debug {
		c.logger.Debug("Received response from salesforce",
			zap.Int("statusCode", res.StatusCode),
			zap.ByteString("responseBody", resBytes),
		)
	}

	switch res.StatusCode {
	// Salesforce HTTP status codes and error responses:
	// https://developer.salesforce.com/docs/atlas.en-us.api_rest.meta/api_rest/errorcodes.htm
	case http.StatusOK, http.StatusCreated, http.StatusNoContent,
		http.StatusMultipleChoices, http.StatusNotModified:
		break
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusUnsupportedMediaType,
		http.StatusInternalServerError:
		apiErr, decodeErr := decodeAPIError(resBytes)
		if decodeErr != nil {
			// The salesforce error response body was in an unexpected and incompatible format
			c.logger.Error("Unexpected salesforce error response format",
				zap.Int("statusCode", res.StatusCode),
				zap.ByteString("responseBody", resBytes),
			)
			return res.StatusCode, nil, decodeErr
		}
		return res.StatusCode, nil, apiErr
	default:
		c.logger.Error("Salesforce returned an unexpected HTTP status code",
			zap.Int("statusCode", res.StatusCode),
			zap.ByteString("responseBody", resBytes),
		)
		return res.StatusCode, nil, fmt.Errorf("unexpected HTTP status code: %d", res.StatusCode)
	}

	return res.StatusCode, resBytes, nil
}
