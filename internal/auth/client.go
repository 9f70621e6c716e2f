// Package auth talks to the account API and keeps the signed-in user on disk.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

var ErrRejected = errors.New("auth: rejected")

// Credentials is what a successful login or signup yields.
type Credentials struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

type response struct {
	Credentials
	Message string `json:"message"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Login(ctx context.Context, email, password string) (Credentials, error) {
	return c.post(ctx, "/api/users/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Register creates an account. The name follows the same rules as a display name.
func (c *Client) Register(ctx context.Context, name, email, password string) (Credentials, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Credentials{}, domain.ErrUsernameEmpty
	}
	if utf8.RuneCountInString(name) > domain.MaxUsernameLen {
		return Credentials{}, domain.ErrUsernameTooLong
	}
	return c.post(ctx, "/api/users/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
}

func (c *Client) post(ctx context.Context, path string, body any) (Credentials, error) {
	l := log.With().Str("module", "auth").Str("path", path).Logger()

	payload, err := json.Marshal(body)
	if err != nil {
		return Credentials{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return Credentials{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		l.Error().Err(err).Msg("request failed")
		return Credentials{}, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	var out response
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Message
		if msg == "" {
			msg = resp.Status
		}
		l.Warn().Int("status", resp.StatusCode).Msg("rejected")
		return Credentials{}, fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	if decodeErr != nil {
		return Credentials{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	if !out.User.ID.Valid() {
		return Credentials{}, fmt.Errorf("decode response: %w", domain.ErrInvalidUserID)
	}
	l.Info().Str("user", string(out.User.ID)).Msg("signed in")
	return out.Credentials, nil
}
