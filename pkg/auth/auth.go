// Package auth supplies credentials for opening a Live session: a
// short-lived token when one can be obtained, otherwise a static API key.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// Live websocket endpoints.
const (
	// TokenEndpoint accepts ephemeral tokens via the access_token query parameter.
	TokenEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContentConstrained"

	// KeyEndpoint accepts an API key query parameter or an OAuth bearer header.
	KeyEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

var (
	// ErrNoCredential is returned when neither a token nor an API key is available.
	ErrNoCredential = errors.New("auth: no live token and no API key configured")

	// ErrEmptyToken is returned when the token endpoint answered without a token.
	ErrEmptyToken = errors.New("auth: token response contained no token")
)

// Credential opens one socket. Exactly one of Token or APIKey is set.
type Credential struct {
	Token string

	// Bearer marks Token as an OAuth access token sent in the
	// Authorization header rather than an ephemeral Live token.
	Bearer bool

	APIKey string
}

// Kind describes the credential for logs.
func (c Credential) Kind() string {
	switch {
	case c.Token != "" && c.Bearer:
		return "oauth"
	case c.Token != "":
		return "token"
	case c.APIKey != "":
		return "api_key"
	default:
		return "none"
	}
}

// Endpoints holds the websocket base URLs. Tests point them at a local server.
type Endpoints struct {
	Token string
	Key   string
}

// DefaultEndpoints are the production Live endpoints.
var DefaultEndpoints = Endpoints{Token: TokenEndpoint, Key: KeyEndpoint}

// URL builds the socket URL for c.
func (e Endpoints) URL(c Credential) (string, error) {
	switch {
	case c.Token != "" && c.Bearer:
		return e.Key, nil
	case c.Token != "":
		return e.Token + "?access_token=" + url.QueryEscape(c.Token), nil
	case c.APIKey != "":
		return e.Key + "?key=" + url.QueryEscape(c.APIKey), nil
	default:
		return "", ErrNoCredential
	}
}

// Header returns the handshake headers for c.
func (c Credential) Header() http.Header {
	h := make(http.Header)
	if c.Token != "" && c.Bearer {
		h.Set("Authorization", "Bearer "+c.Token)
	}
	return h
}

// URL builds the socket URL for c against the production endpoints.
func URL(c Credential) (string, error) {
	return DefaultEndpoints.URL(c)
}

// Authenticator supplies the credential for a new session.
type Authenticator interface {
	Credential(ctx context.Context) (Credential, error)
}

// Static always returns the same credential.
type Static Credential

// Credential implements Authenticator.
func (s Static) Credential(ctx context.Context) (Credential, error) {
	c := Credential(s)
	if c.Token == "" && c.APIKey == "" {
		return Credential{}, ErrNoCredential
	}
	return c, nil
}

// Chain tries an ephemeral token source, then an OAuth source, then the
// static API key. Token failures are logged and fall through.
type Chain struct {
	Tokens oauth2.TokenSource
	OAuth  oauth2.TokenSource
	APIKey string
	Logger *slog.Logger
}

// Credential implements Authenticator. It only returns an error when ctx
// is cancelled or nothing is available.
func (c *Chain) Credential(ctx context.Context) (Credential, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if c.Tokens != nil {
		tok, err := fetch(ctx, c.Tokens)
		if err == nil {
			return Credential{Token: tok.AccessToken}, nil
		}
		if ctx.Err() != nil {
			return Credential{}, ctx.Err()
		}
		logger.Warn("live token unavailable, falling back", "error", err)
	}

	if c.OAuth != nil {
		tok, err := fetch(ctx, c.OAuth)
		if err == nil {
			return Credential{Token: tok.AccessToken, Bearer: true}, nil
		}
		if ctx.Err() != nil {
			return Credential{}, ctx.Err()
		}
		logger.Warn("oauth token unavailable, falling back", "error", err)
	}

	if c.APIKey != "" {
		return Credential{APIKey: c.APIKey}, nil
	}
	return Credential{}, ErrNoCredential
}

// fetch runs ts.Token so that a cancelled ctx returns immediately. The
// late result of an abandoned fetch is discarded.
func fetch(ctx context.Context, ts oauth2.TokenSource) (*oauth2.Token, error) {
	type result struct {
		tok *oauth2.Token
		err error
	}
	ch := make(chan result, 1)
	go func() {
		tok, err := ts.Token()
		ch <- result{tok, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.tok == nil || r.tok.AccessToken == "" {
			return nil, ErrEmptyToken
		}
		return r.tok, nil
	}
}

var (
	_ Authenticator = (*Chain)(nil)
	_ Authenticator = Static{}
)

func wrap(op string, err error) error {
	return fmt.Errorf("auth: %s: %w", op, err)
}
