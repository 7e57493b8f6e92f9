package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"quad/internal/auth"
)

// Config configures the hosted auth client
type Config struct {
	// URL is the project URL, e.g. https://abc.supabase.co
	URL     string
	AnonKey string
	// JWTSecret verifies access tokens locally. When empty, GetUser asks the
	// auth service instead.
	JWTSecret  string
	HTTPClient *http.Client
}

// Client talks to a hosted GoTrue compatible auth service
type Client struct {
	baseURL    string
	anonKey    string
	jwtSecret  []byte
	httpClient *http.Client
	logger     *zap.Logger
}

var _ auth.Provider = (*Client)(nil)

// NewClient creates a client for the auth endpoints under cfg.URL/auth/v1
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, errors.New("supabase url and anon key are required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	var secret []byte
	if cfg.JWTSecret != "" {
		secret = []byte(cfg.JWTSecret)
	}
	return &Client{
		baseURL:    cfg.URL + "/auth/v1",
		anonKey:    cfg.AnonKey,
		jwtSecret:  secret,
		httpClient: httpClient,
		logger:     logger.Named("auth.supabase"),
	}, nil
}

// errorResponse covers the error bodies of current and older auth servers
type errorResponse struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e errorResponse) message() string {
	for _, m := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

// do sends a JSON request. accessToken, when set, authenticates the call as
// that user through an oauth2 bearer transport.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, accessToken string, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.httpClient
	if accessToken != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call auth service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.toProviderError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode auth response: %w", err)
		}
	}
	return nil
}

func (c *Client) toProviderError(status int, data []byte) error {
	var body errorResponse
	_ = json.Unmarshal(data, &body)

	code := body.ErrorCode
	if code == "" {
		code = body.Error
	}
	message := body.message()
	if message == "" {
		message = http.StatusText(status)
	}

	c.logger.Debug("auth service returned an error",
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("message", message))

	return auth.NewProviderError(status, code, message, sentinelFor(status, code))
}

// sentinelFor maps auth service error codes onto the provider sentinels
func sentinelFor(status int, code string) error {
	switch code {
	case "user_already_exists", "email_exists":
		return auth.ErrEmailTaken
	case "invalid_credentials", "invalid_grant":
		return auth.ErrInvalidCredentials
	case "email_not_confirmed":
		return auth.ErrEmailNotConfirmed
	case "otp_expired", "otp_disabled", "bad_code_verifier":
		return auth.ErrInvalidToken
	case "session_not_found", "bad_jwt", "no_authorization":
		return auth.ErrUnauthorized
	case "validation_failed", "weak_password", "email_address_invalid":
		return auth.ErrInvalidInput
	}
	if status == http.StatusUnauthorized {
		return auth.ErrUnauthorized
	}
	return nil
}
