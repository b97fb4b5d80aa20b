package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// TokenProvider supplies the stored OAuth token of the installed-app flow.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	HasToken() bool
}

// FileTokenProvider keeps the token as JSON in a file.
type FileTokenProvider struct {
	path string
}

// NewFileTokenProvider creates a provider reading and writing path.
// An empty path selects DefaultTokenFile.
func NewFileTokenProvider(path string) *FileTokenProvider {
	if path == "" {
		path = DefaultTokenFile()
	}
	return &FileTokenProvider{path: path}
}

// Path returns the token file location.
func (p *FileTokenProvider) Path() string {
	return p.path
}

// Token reads the stored token.
func (p *FileTokenProvider) Token(_ context.Context) (*oauth2.Token, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found at %s: %w", p.path, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", p.path, err)
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, fmt.Errorf("token file %s holds no token", p.path)
	}
	return &tok, nil
}

// HasToken reports whether a token file exists.
func (p *FileTokenProvider) HasToken() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

// Save writes tok with owner-only permissions.
func (p *FileTokenProvider) Save(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
