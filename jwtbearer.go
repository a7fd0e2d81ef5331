package sfquery

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// jwtBearer mints and exchanges JWT assertions for access tokens.
type jwtBearer struct {
	client *http.Client

	// URL of server where the salesforce organization lives
	instanceURL string

	// Variables needed for the generation and signing of the JWT token
	rsaPrivateKey   *rsa.PrivateKey
	consumerKey     string
	username        string
	authServerURL   string
	tokenExpTimeout time.Duration
}

// NewClientWithJWTBearer builds a client that authenticates via the
// "OAuth 2.0 JWT Bearer Flow for Server-to-Server Integration"
// see https://help.salesforce.com/articleView?id=remoteaccess_oauth_jwt_flow.htm
// On a 401 API response the client mints a fresh assertion, exchanges it for
// a new access token and retries the request once.
func NewClientWithJWTBearer(sandbox bool, instanceURL, consumerKey, username string, privateKey []byte, tokenExpTimeout time.Duration, opts ...Option) (Client, error) {
	baseSFURL := "https://%s.salesforce.com"

	var authServerURL string
	if sandbox {
		authServerURL = fmt.Sprintf(baseSFURL, "test")
	} else {
		authServerURL = fmt.Sprintf(baseSFURL, "login")
	}

	c := newRestClient(Session{InstanceURL: instanceURL}, opts...)

	bearer := jwtBearer{
		client:          &c.client,
		instanceURL:     c.instanceURL,
		authServerURL:   authServerURL,
		consumerKey:     consumerKey,
		username:        username,
		tokenExpTimeout: tokenExpTimeout,
	}

	var err error
	if bearer.rsaPrivateKey, err = jwt.ParseRSAPrivateKeyFromPEM(privateKey); err != nil {
		return nil, err
	}

	token, err := bearer.newAccessToken()
	if err != nil {
		return nil, err
	}
	c.accessToken = token
	c.refresh = func(context.Context) (string, error) {
		return bearer.newAccessToken()
	}

	return c, nil
}

// newAccessToken requests a fresh access token from salesforce by signing a
// JWT assertion with the private key and exchanging it at the OAuth endpoint.
func (b *jwtBearer) newAccessToken() (string, error) {
	// Create JWT
	token := jwt.NewWithClaims(
		jwt.SigningMethodRS256,
		jwt.StandardClaims{
			Issuer:    b.consumerKey,
			Audience:  b.authServerURL,
			Subject:   b.username,
			ExpiresAt: time.Now().Add(b.tokenExpTimeout).UTC().Unix(),
		},
	)
	// Sign JWT with the private key
	signedJWT, err := token.SignedString(b.rsaPrivateKey)
	if err != nil {
		return "", err
	}

	// Request new access token from salesforce's OAuth endpoint
	oauthTokenURL := b.instanceURL + "/services/oauth2/token"
	req, err := http.NewRequest(
		http.MethodPost,
		oauthTokenURL,
		strings.NewReader(
			fmt.Sprintf("grant_type=urn:ietf:params:oauth:grant-type:jwt-bearer&assertion=%s", signedJWT),
		),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := b.client.Do(req)
	if err != nil {
		return "", err
	}

	resBytes, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return "", err
	}

	switch res.StatusCode {
	case http.StatusOK:
		break
	case http.StatusBadRequest:
		var errRes OAuthErr
		if err := json.Unmarshal(resBytes, &errRes); err != nil {
			return "", err
		}
		return "", &errRes
	default:
		return "", fmt.Errorf("%s responded with an unexpected HTTP status code: %d", oauthTokenURL, res.StatusCode)
	}

	var tokenRes AccessTokenResponse
	if err := json.Unmarshal(resBytes, &tokenRes); err != nil {
		return "", err
	}

	return tokenRes.AccessToken, nil
}
