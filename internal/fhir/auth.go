package fhir

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// BackendAuthConfig configures SMART backend-services authentication.
type BackendAuthConfig struct {
	ClientID       string
	TokenURL       string
	PrivateKeyPath string
	Scopes         []string
}

// assertionTokenSource exchanges a freshly signed client assertion for
// an access token on every call. Wrap it in oauth2.ReuseTokenSource.
type assertionTokenSource struct {
	ctx  context.Context
	cfg  BackendAuthConfig
	key  *rsa.PrivateKey
	now  func() time.Time
	base *http.Client
}

// NewBackendHTTPClient returns an http.Client that authenticates every
// request with a cached backend-services access token.
func NewBackendHTTPClient(ctx context.Context, cfg BackendAuthConfig, base *http.Client) (*http.Client, error) {
	pemBytes, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return newBackendHTTPClient(ctx, cfg, key, base), nil
}

func newBackendHTTPClient(ctx context.Context, cfg BackendAuthConfig, key *rsa.PrivateKey, base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}

	source := &assertionTokenSource{
		ctx:  ctx,
		cfg:  cfg,
		key:  key,
		now:  time.Now,
		base: base,
	}

	return &http.Client{
		Timeout: base.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, source),
			Base:   base.Transport,
		},
	}
}

// Token implements oauth2.TokenSource
func (s *assertionTokenSource) Token() (*oauth2.Token, error) {
	assertion, err := s.signAssertion()
	if err != nil {
		return nil, err
	}

	cc := clientcredentials.Config{
		ClientID:  s.cfg.ClientID,
		TokenURL:  s.cfg.TokenURL,
		Scopes:    s.cfg.Scopes,
		AuthStyle: oauth2.AuthStyleInParams,
		EndpointParams: url.Values{
			"client_assertion_type": {clientAssertionType},
			"client_assertion":      {assertion},
		},
	}

	ctx := context.WithValue(s.ctx, oauth2.HTTPClient, s.base)
	token, err := cc.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}
	return token, nil
}

func (s *assertionTokenSource) signAssertion() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.cfg.ClientID,
		Subject:   s.cfg.ClientID,
		Audience:  jwt.ClaimStrings{s.cfg.TokenURL},
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign client assertion: %w", err)
	}
	return signed, nil
}
