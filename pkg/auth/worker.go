package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"

	"github.com/teslashibe/go-livevoice/internal/httpc"
)

// GenerativeLanguageScope is the OAuth scope for the Live API.
const GenerativeLanguageScope = "https://www.googleapis.com/auth/generative-language"

// WorkerTokenSource asks a token worker for a fresh ephemeral Live token.
// Ephemeral tokens are single use; every call mints a new one.
type WorkerTokenSource struct {
	ctx    context.Context
	url    string
	client *http.Client
}

// NewWorkerTokenSource creates a token source posting to url. A nil client
// uses the shared httpc client.
func NewWorkerTokenSource(ctx context.Context, url string, client *http.Client) *WorkerTokenSource {
	if client == nil {
		client = httpc.Client
	}
	return &WorkerTokenSource{ctx: ctx, url: url, client: client}
}

// Token implements oauth2.TokenSource.
func (w *WorkerTokenSource) Token() (*oauth2.Token, error) {
	resp, err := httpc.PostJSON(w.ctx, w.client, w.url, map[string]string{"action": "live_token"})
	if err != nil {
		return nil, wrap("request live token", err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, wrap("live token", err)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, wrap("decode live token", err)
	}

	var token string
	for _, key := range []string{"token", "access_token", "accessToken", "name"} {
		if s, ok := body[key].(string); ok && s != "" {
			token = s
			break
		}
	}
	if token == "" {
		return nil, ErrEmptyToken
	}

	return &oauth2.Token{
		AccessToken: token,
		Expiry:      expiry(body),
	}, nil
}

// expiry reads expireTime (RFC 3339) or expires_in (seconds).
func expiry(body map[string]any) time.Time {
	if s, ok := body["expireTime"].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	if n, ok := body["expires_in"].(float64); ok && n > 0 {
		return time.Now().Add(time.Duration(n) * time.Second)
	}
	return time.Time{}
}

var _ oauth2.TokenSource = (*WorkerTokenSource)(nil)

// GoogleTokenSource returns Application Default Credentials scoped for the
// Live API, cached until expiry.
func GoogleTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	ts, err := google.DefaultTokenSource(ctx, GenerativeLanguageScope)
	if err != nil {
		return nil, wrap("default credentials", err)
	}
	return oauth2.ReuseTokenSource(nil, ts), nil
}
