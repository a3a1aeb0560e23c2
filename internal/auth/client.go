// Package auth talks to the chat service's credential endpoints. Credentials
// are validated locally before any request so oversized passwords never leave
// the client.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxPasswordBytes mirrors the server's bcrypt input limit.
const MaxPasswordBytes = 72

var (
	// ErrEmptyCredentials is returned when the username or password is blank.
	ErrEmptyCredentials = errors.New("auth: username and password are required")

	// ErrPasswordTooLong is returned when the password exceeds
	// MaxPasswordBytes once UTF-8 encoded.
	ErrPasswordTooLong = fmt.Errorf("auth: password must be at most %d bytes", MaxPasswordBytes)
)

// Generic fallbacks used when the server does not explain a failure.
const (
	fallbackRegister = "registration failed"
	fallbackLogin    = "login failed"
)

// Credentials is the JSON body of both auth calls.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate trims both fields and enforces the local checks. It returns the
// trimmed credentials.
func (c Credentials) Validate() (Credentials, error) {
	c.Username = strings.TrimSpace(c.Username)
	c.Password = strings.TrimSpace(c.Password)
	if c.Username == "" || c.Password == "" {
		return c, ErrEmptyCredentials
	}
	if len([]byte(c.Password)) > MaxPasswordBytes {
		return c, ErrPasswordTooLong
	}
	return c, nil
}

// Error is a non-2xx response from the auth API.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

// tokenResponse is the login response body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Client calls the auth API rooted at BaseURL.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given server base URL (for example
// "http://localhost:8000"). A nil httpClient uses a client with a 10s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, creds Credentials) error {
	creds, err := creds.Validate()
	if err != nil {
		return err
	}
	_, err = c.post(ctx, "/auth/register", creds, fallbackRegister)
	return err
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	creds, err := creds.Validate()
	if err != nil {
		return "", err
	}
	body, err := c.post(ctx, "/auth/login", creds, fallbackLogin)
	if err != nil {
		return "", err
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("auth: decode login response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("auth: login response carried no access token")
	}
	return tok.AccessToken, nil
}

// post sends creds as JSON and returns the response body of a 2xx reply.
// Other statuses become *Error with the server's detail, or fallback.
func (c *Client) post(ctx context.Context, path string, creds Credentials, fallback string) ([]byte, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("auth: marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("auth: read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorDetail(body)
		if detail == "" {
			detail = fallback
		}
		return nil, &Error{Status: resp.StatusCode, Detail: detail}
	}
	return body, nil
}

// errorDetail extracts the server's "detail" field. It is either a string or
// a list of validation errors each carrying "msg".
func errorDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
