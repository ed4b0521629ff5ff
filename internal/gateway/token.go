package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// tokenFile is the on-disk token format. It carries the OAuth client
// credentials alongside the token so refresh works without re-consenting.
type tokenFile struct {
	ClientID     string        `json:"client_id"`
	ClientSecret string        `json:"client_secret"`
	Token        *oauth2.Token `json:"token"`
}

// fileTokenSource adapts an oauth2.TokenSource to the gateway's TokenSource
// interface, persisting refreshed tokens back to disk.
type fileTokenSource struct {
	path   string
	tf     tokenFile
	src    oauth2.TokenSource
	logger *slog.Logger
}

// TokenSourceFromPath loads a saved token file and returns a TokenSource
// that refreshes automatically. Returns ErrNotLoggedIn when no token file
// exists.
func TokenSourceFromPath(ctx context.Context, path string, logger *slog.Logger) (TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotLoggedIn
		}

		return nil, fmt.Errorf("gateway: reading token file: %w", err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("gateway: parsing token file %s: %w", path, err)
	}

	if tf.Token == nil || tf.Token.AccessToken == "" && tf.Token.RefreshToken == "" {
		return nil, ErrNotLoggedIn
	}

	cfg := &oauth2.Config{
		ClientID:     tf.ClientID,
		ClientSecret: tf.ClientSecret,
		Endpoint:     google.Endpoint,
	}

	return &fileTokenSource{
		path:   path,
		tf:     tf,
		src:    cfg.TokenSource(ctx, tf.Token),
		logger: logger,
	}, nil
}

// Token returns a valid bearer token, refreshing if expired. A refreshed
// token is written back so the next invocation starts fresh.
func (s *fileTokenSource) Token() (string, error) {
	tok, err := s.src.Token()
	if err != nil {
		return "", fmt.Errorf("gateway: refreshing token: %w", err)
	}

	if tok.AccessToken != s.tf.Token.AccessToken {
		s.tf.Token = tok
		if err := s.persist(); err != nil {
			// Persist failure is not fatal — the token is still usable.
			s.logger.Warn("failed to persist refreshed token", slog.String("error", err.Error()))
		}
	}

	return tok.AccessToken, nil
}

// persist writes the token file atomically via a temp file rename.
func (s *fileTokenSource) persist() error {
	data, err := json.MarshalIndent(&s.tf, "", "  ")
	if err != nil {
		return fmt.Errorf("gateway: marshaling token: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("gateway: writing token temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("gateway: replacing token file: %w", err)
	}

	return nil
}

// StaticTokenSource returns a TokenSource that always yields the same
// token. Used by tests.
func StaticTokenSource(token string) TokenSource {
	return staticToken(token)
}

type staticToken string

func (t staticToken) Token() (string, error) {
	return string(t), nil
}
