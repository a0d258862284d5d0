package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

func TestEndpoints_URL(t *testing.T) {
	tests := []struct {
		name    string
		cred    Credential
		want    string
		wantErr error
	}{
		{
			name: "ephemeral token",
			cred: Credential{Token: "auth_tokens/a+b"},
			want: TokenEndpoint + "?access_token=auth_tokens%2Fa%2Bb",
		},
		{
			name: "api key",
			cred: Credential{APIKey: "k&y"},
			want: KeyEndpoint + "?key=k%26y",
		},
		{
			name: "oauth bearer",
			cred: Credential{Token: "ya29", Bearer: true},
			want: KeyEndpoint,
		},
		{
			name:    "nothing",
			cred:    Credential{},
			wantErr: ErrNoCredential,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URL(tt.cred)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("URL() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCredential_Header(t *testing.T) {
	if h := (Credential{Token: "ya29", Bearer: true}).Header(); h.Get("Authorization") != "Bearer ya29" {
		t.Errorf("Expected bearer header, got %v", h)
	}
	if h := (Credential{Token: "eph"}).Header(); h.Get("Authorization") != "" {
		t.Errorf("Ephemeral tokens travel in the URL, got header %v", h)
	}
}

func workerServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWorkerTokenSource_FieldAliases(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"token", `{"token":"t1"}`, "t1"},
		{"access_token", `{"access_token":"t2"}`, "t2"},
		{"accessToken", `{"accessToken":"t3"}`, "t3"},
		{"name", `{"name":"auth_tokens/t4"}`, "auth_tokens/t4"},
		{"precedence", `{"name":"n","token":"t"}`, "t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := workerServer(t, http.StatusOK, tt.body)
			tok, err := NewWorkerTokenSource(context.Background(), srv.URL, nil).Token()
			if err != nil {
				t.Fatalf("Token() error = %v", err)
			}
			if tok.AccessToken != tt.want {
				t.Errorf("AccessToken = %q, want %q", tok.AccessToken, tt.want)
			}
		})
	}
}

func TestWorkerTokenSource_Expiry(t *testing.T) {
	srv := workerServer(t, http.StatusOK, `{"token":"t","expireTime":"2030-01-02T03:04:05Z"}`)
	tok, err := NewWorkerTokenSource(context.Background(), srv.URL, nil).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	want := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	if !tok.Expiry.Equal(want) {
		t.Errorf("Expiry = %v, want %v", tok.Expiry, want)
	}
}

func TestWorkerTokenSource_FreshTokenPerCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"token":"t%d","expireTime":"2030-01-02T03:04:05Z"}`, n)
	}))
	t.Cleanup(srv.Close)

	ts := NewWorkerTokenSource(context.Background(), srv.URL, nil)
	first, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	second, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if calls.Load() != 2 {
		t.Errorf("Expected 2 worker requests, got %d", calls.Load())
	}
	if first.AccessToken == second.AccessToken {
		t.Errorf("Expected distinct tokens, got %q twice", first.AccessToken)
	}
}

func TestWorkerTokenSource_Errors(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := workerServer(t, http.StatusUnauthorized, `{"error":{"code":401,"message":"no"}}`)
		_, err := NewWorkerTokenSource(context.Background(), srv.URL, nil).Token()

		var gerr *googleapi.Error
		if !errors.As(err, &gerr) || gerr.Code != http.StatusUnauthorized {
			t.Errorf("Expected googleapi 401 error, got %v", err)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		srv := workerServer(t, http.StatusOK, `{"ok":true}`)
		_, err := NewWorkerTokenSource(context.Background(), srv.URL, nil).Token()
		if !errors.Is(err, ErrEmptyToken) {
			t.Errorf("Expected ErrEmptyToken, got %v", err)
		}
	})

	t.Run("bad json", func(t *testing.T) {
		srv := workerServer(t, http.StatusOK, `nope`)
		if _, err := NewWorkerTokenSource(context.Background(), srv.URL, nil).Token(); err == nil {
			t.Error("Expected decode error")
		}
	})
}

type tokenFunc func() (*oauth2.Token, error)

func (f tokenFunc) Token() (*oauth2.Token, error) { return f() }

func TestChain(t *testing.T) {
	failing := tokenFunc(func() (*oauth2.Token, error) { return nil, errors.New("worker down") })
	working := tokenFunc(func() (*oauth2.Token, error) { return &oauth2.Token{AccessToken: "eph"}, nil })
	oauth := tokenFunc(func() (*oauth2.Token, error) { return &oauth2.Token{AccessToken: "ya29"}, nil })

	tests := []struct {
		name     string
		chain    Chain
		wantKind string
		wantErr  error
	}{
		{"token first", Chain{Tokens: working, APIKey: "key"}, "token", nil},
		{"falls back to key", Chain{Tokens: failing, APIKey: "key"}, "api_key", nil},
		{"falls back to oauth", Chain{Tokens: failing, OAuth: oauth, APIKey: "key"}, "oauth", nil},
		{"key only", Chain{APIKey: "key"}, "api_key", nil},
		{"nothing", Chain{Tokens: failing}, "none", ErrNoCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := tt.chain.Credential(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Credential() error = %v, want %v", err, tt.wantErr)
			}
			if cred.Kind() != tt.wantKind {
				t.Errorf("Kind() = %s, want %s", cred.Kind(), tt.wantKind)
			}
		})
	}
}

func TestChain_CancelledFetch(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := tokenFunc(func() (*oauth2.Token, error) {
		<-release
		return &oauth2.Token{AccessToken: "late"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	chain := Chain{Tokens: slow, APIKey: "key"}
	_, err := chain.Credential(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestStatic(t *testing.T) {
	if _, err := (Static{}).Credential(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Expected ErrNoCredential, got %v", err)
	}
	cred, err := Static{APIKey: "k"}.Credential(context.Background())
	if err != nil || cred.APIKey != "k" {
		t.Errorf("Unexpected credential %+v, err %v", cred, err)
	}
	if !strings.Contains(ErrNoCredential.Error(), "API key") {
		t.Errorf("Unexpected message %q", ErrNoCredential)
	}
}
