package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
)

// TokenSource produces the bearer credential for Graph API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type clientCredentialSource struct {
	log          *logger.Logger
	tenantID     string
	clientID     string
	clientSecret string
	authorityURL string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewClientCredentialSource reads the Graph app registration from
// MICROSOFT_TENANT_ID / MICROSOFT_CLIENT_ID / MICROSOFT_CLIENT_SECRET and
// exchanges it for app-only tokens, refreshing shortly before expiry.
func NewClientCredentialSource(log *logger.Logger) (TokenSource, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	tenantID := strings.TrimSpace(os.Getenv("MICROSOFT_TENANT_ID"))
	clientID := strings.TrimSpace(os.Getenv("MICROSOFT_CLIENT_ID"))
	clientSecret := strings.TrimSpace(os.Getenv("MICROSOFT_CLIENT_SECRET"))
	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("missing MICROSOFT_TENANT_ID/MICROSOFT_CLIENT_ID/MICROSOFT_CLIENT_SECRET")
	}

	authorityURL := strings.TrimSpace(os.Getenv("MICROSOFT_AUTHORITY_URL"))
	if authorityURL == "" {
		authorityURL = "https://login.microsoftonline.com"
	}

	return &clientCredentialSource{
		log:          log.With("service", "GraphTokenSource"),
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		authorityURL: strings.TrimRight(authorityURL, "/"),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (s *clientCredentialSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expiresAt) {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	form.Set("scope", "https://graph.microsoft.com/.default")

	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", s.authorityURL, s.tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("graph token request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("graph token read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.Unmarshal(raw, &failure)
		return "", fmt.Errorf("graph token request failed: status=%d error=%s %s",
			resp.StatusCode, failure.Error, failure.ErrorDescription)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("graph token decode: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("graph token response missing access_token")
	}

	s.token = out.AccessToken
	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	// renew a minute early so in-flight requests never carry an expired token
	s.expiresAt = time.Now().Add(ttl - time.Minute)
	return s.token, nil
}
