package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
)

func writeTestKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "app.pem")
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path
}

func TestTokenReusesCachedInstallationToken(t *testing.T) {
	mints := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		mints[r.URL.Path]++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"token":"ghs_test%d","expires_at":%q}`,
			mints[r.URL.Path], time.Now().Add(time.Hour).Format(time.RFC3339))
	}))
	defer srv.Close()

	t.Setenv("GITHUB_APP_ID", "12345")
	t.Setenv("GITHUB_PRIVATE_KEY_PATH", writeTestKey(t))
	t.Setenv("GITHUB_API_BASE_URL", srv.URL)

	auth, err := NewAppAuth(logger.Nop())
	if err != nil {
		t.Fatalf("new app auth: %v", err)
	}

	ctx := context.Background()
	first, err := auth.Token(ctx, "777")
	if err != nil {
		t.Fatalf("first token: %v", err)
	}
	second, err := auth.Token(ctx, "777")
	if err != nil {
		t.Fatalf("second token: %v", err)
	}
	if first != second {
		t.Fatalf("token not reused: first=%s second=%s", first, second)
	}
	if got := mints["/app/installations/777/access_tokens"]; got != 1 {
		t.Fatalf("mint calls for installation 777: want=1 got=%d", got)
	}

	// a different installation gets its own token
	other, err := auth.Token(ctx, "888")
	if err != nil {
		t.Fatalf("other token: %v", err)
	}
	if other == first {
		t.Fatalf("installations must not share tokens")
	}
	if got := mints["/app/installations/888/access_tokens"]; got != 1 {
		t.Fatalf("mint calls for installation 888: want=1 got=%d", got)
	}
}
