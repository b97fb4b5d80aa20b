package google

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Config selects how reservesync authenticates to Google APIs.
//
// CredentialsFile takes precedence and may hold a service account key or an
// authorized-user file. Otherwise the installed-app flow is used with
// ClientID/ClientSecret and the token stored in TokenFile.
type Config struct {
	CredentialsFile string
	ClientID        string
	ClientSecret    string
	TokenFile       string
}

// OAuthConfig returns the installed-app OAuth2 configuration.
func OAuthConfig(cfg Config) *oauth2.Config {
	const OOB = "urn:ietf:wg:oauth:2.0:oob"
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  OOB,
		Scopes:       Scopes,
	}
}

// AuthURL returns the URL the operator visits to authorize reservesync.
func AuthURL(cfg Config) string {
	return OAuthConfig(cfg).AuthCodeURL("state", oauth2.AccessTypeOffline)
}

// SaveToken exchanges an authorization code and stores the resulting token.
func SaveToken(ctx context.Context, cfg Config, authCode string) error {
	tok, err := OAuthConfig(cfg).Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return NewFileTokenProvider(cfg.TokenFile).Save(tok)
}

// TokenSource returns a token source for the configured credentials.
func TokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials file: %w", err)
		}
		return creds.TokenSource, nil
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("either a credentials file or an OAuth client id and secret is required")
	}

	tok, err := NewFileTokenProvider(cfg.TokenFile).Token(ctx)
	if err != nil {
		return nil, err
	}
	return OAuthConfig(cfg).TokenSource(ctx, tok), nil
}

// HTTPClient returns an HTTP client authenticated for all reservesync scopes.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func HTTPClient(ctx context.Context, cfg Config) (*http.Client, error) {
	ts, err := TokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, ts),
			Base:   &http.Transport{ForceAttemptHTTP2: false, Proxy: http.ProxyFromEnvironment},
		},
	}, nil
}

// DefaultTokenFile is where the installed-app token is kept when no path is configured.
func DefaultTokenFile() string {
	return filepath.Join(userCacheDir(), "reservesync", "google.token")
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		return "."
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
