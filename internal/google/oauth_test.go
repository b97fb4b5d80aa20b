package google

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestFileTokenProvider_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens", "google.token")
	p := NewFileTokenProvider(path)

	if p.HasToken() {
		t.Fatal("expected no token before save")
	}

	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Unix(1700000000, 0).UTC(),
	}
	if err := p.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !p.HasToken() {
		t.Fatal("expected token after save")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got.RefreshToken != want.RefreshToken || got.AccessToken != want.AccessToken {
		t.Errorf("Token() = %+v, want %+v", got, want)
	}
}

func TestFileTokenProvider_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewFileTokenProvider(filepath.Join(dir, "missing")).Token(context.Background()); err == nil {
		t.Error("expected error for missing token file")
	}

	garbage := filepath.Join(dir, "garbage")
	if err := os.WriteFile(garbage, []byte("access refresh"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileTokenProvider(garbage).Token(context.Background()); err == nil {
		t.Error("expected error for non-JSON token file")
	}

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileTokenProvider(empty).Token(context.Background()); err == nil {
		t.Error("expected error for token file without tokens")
	}
}

func TestDefaultTokenFile(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/cache")
	if runtime.GOOS == "linux" {
		if got := DefaultTokenFile(); got != "/tmp/cache/reservesync/google.token" {
			t.Errorf("DefaultTokenFile() = %q", got)
		}
	}
	if got := NewFileTokenProvider("").Path(); !strings.HasSuffix(got, filepath.Join("reservesync", "google.token")) {
		t.Errorf("default provider path = %q", got)
	}
}

func TestTokenSource_RequiresCredentials(t *testing.T) {
	_, err := TokenSource(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error without credentials")
	}

	_, err = TokenSource(context.Background(), Config{CredentialsFile: filepath.Join(t.TempDir(), "nope.json")})
	if err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}

func TestAuthURL(t *testing.T) {
	url := AuthURL(Config{ClientID: "client-123", ClientSecret: "secret"})
	for _, want := range []string{"client_id=client-123", "access_type=offline", "spreadsheets"} {
		if !strings.Contains(url, want) {
			t.Errorf("AuthURL() = %q, missing %q", url, want)
		}
	}
}
