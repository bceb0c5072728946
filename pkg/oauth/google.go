// Package oauth - OAuth2-обмен для Google Sheets.
//
// Пакет покрывает серверную часть authorization code flow: выдачу URL
// согласия, обмен кода на пару токенов и обновление access-токена по
// refresh-токену. Состояние CSRF-параметра живет в StateStore
// (Redis в продакшене, память в тестах).
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAuthEndpoint  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenEndpoint = "https://oauth2.googleapis.com/token"

	// Единственный scope: адаптер читает и пишет книги
	sheetsScope = "https://www.googleapis.com/auth/spreadsheets"

	defaultTimeout = 15 * time.Second
)

// Config - конфигурация OAuth-клиента
type Config struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`

	// Переопределяются в тестах
	AuthEndpoint  string `yaml:"auth_endpoint,omitempty"`
	TokenEndpoint string `yaml:"token_endpoint,omitempty"`
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("oauth: client_id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("oauth: client_secret is required")
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("oauth: redirect_uri is required")
	}
	return nil
}

// Token - пара токенов из ответа token-эндпоинта
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Client - OAuth2-клиент Google
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient создает клиент
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.AuthEndpoint == "" {
		cfg.AuthEndpoint = defaultAuthEndpoint
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = defaultTokenEndpoint
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// AuthURL строит URL страницы согласия.
// access_type=offline и prompt=consent гарантируют refresh-токен в ответе.
func (c *Client) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", sheetsScope)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("state", state)
	return c.cfg.AuthEndpoint + "?" + q.Encode()
}

// Exchange меняет authorization code на пару токенов
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("redirect_uri", c.cfg.RedirectURI)

	tok, err := c.tokenRequest(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("token response has no refresh token")
	}
	return tok, nil
}

// Refresh обновляет access-токен по refresh-токену.
// Google не ротирует refresh-токен: поле RefreshToken ответа пустое.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	tok, err := c.tokenRequest(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return tok, nil
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var oauthErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.Unmarshal(data, &oauthErr) == nil && oauthErr.Error != "" {
			return nil, fmt.Errorf("token endpoint returned %d: %s (%s)",
				resp.StatusCode, oauthErr.Error, oauthErr.Description)
		}
		return nil, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access token")
	}
	return &tok, nil
}
