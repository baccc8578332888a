package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
)

// TokenSource produces a bearer credential scoped to one app installation.
// Connectors never see the minting mechanics.
type TokenSource interface {
	Token(ctx context.Context, installationID string) (string, error)
}

type appAuth struct {
	log        *logger.Logger
	appID      string
	privateKey *rsa.PrivateKey
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]cachedToken
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// NewAppAuth loads the GitHub App credentials from GITHUB_APP_ID and
// GITHUB_PRIVATE_KEY_PATH. A missing or unparsable key is fatal: without a
// credential the whole GitHub run is meaningless.
func NewAppAuth(log *logger.Logger) (TokenSource, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	appID := strings.TrimSpace(os.Getenv("GITHUB_APP_ID"))
	if appID == "" {
		return nil, fmt.Errorf("missing GITHUB_APP_ID")
	}
	keyPath := strings.TrimSpace(os.Getenv("GITHUB_PRIVATE_KEY_PATH"))
	if keyPath == "" {
		return nil, fmt.Errorf("missing GITHUB_PRIVATE_KEY_PATH")
	}
	pemBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read github private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse github private key: %w", err)
	}

	baseURL := strings.TrimSpace(os.Getenv("GITHUB_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}

	return &appAuth{
		log:        log.With("service", "GitHubAppAuth"),
		appID:      appID,
		privateKey: key,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      make(map[string]cachedToken),
	}, nil
}

// appJWT mints the short-lived app-level JWT (10 minutes, RS256).
func (a *appAuth) appJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    a.appID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.privateKey)
}

// Token returns a cached installation token while it has at least a minute
// of validity left, minting a fresh one otherwise.
func (a *appAuth) Token(ctx context.Context, installationID string) (string, error) {
	a.mu.Lock()
	if tok, ok := a.cache[installationID]; ok && time.Now().Before(tok.expiresAt.Add(-time.Minute)) {
		a.mu.Unlock()
		return tok.value, nil
	}
	a.mu.Unlock()

	appToken, err := a.appJWT()
	if err != nil {
		return "", fmt.Errorf("mint app jwt: %w", err)
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", a.baseURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+appToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("installation token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("installation token request: status=%d installation=%s", resp.StatusCode, installationID)
	}

	var out struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode installation token: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("empty installation token for installation %s", installationID)
	}

	// installation tokens last an hour; a parse failure gets a conservative ttl
	expiresAt, err := time.Parse(time.RFC3339, out.ExpiresAt)
	if err != nil {
		expiresAt = time.Now().Add(30 * time.Minute)
	}
	a.mu.Lock()
	a.cache[installationID] = cachedToken{value: out.Token, expiresAt: expiresAt}
	a.mu.Unlock()
	return out.Token, nil
}
