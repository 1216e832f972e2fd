// Yoto device-code authorization and token persistence.
//
// The device flow prints a verification URL + user code, then polls the token
// endpoint until the user approves. Tokens are saved per named account under
// the user config dir with 0600 permissions.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/cardsync/internal/shared"
)

const yotoAuthURL = "https://login.yotoplay.com"

// TokenData holds an account's OAuth tokens.
type TokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
}

// IsExpired reports whether the access token has lapsed.
func (t *TokenData) IsExpired() bool {
	return time.Now().Unix() >= t.ExpiresAt
}

// DeviceCode is the device-authorization response from the login service.
type DeviceCode struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// RequestDeviceCode starts the device authorization flow.
func RequestDeviceCode(ctx context.Context, authBase, clientID string) (*DeviceCode, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("scope", "offline_access")
	form.Set("audience", yotoBaseURL)

	data, status, err := postForm(ctx, authBase+"/oauth/device/code", form)
	if err != nil {
		return nil, fmt.Errorf("%w: device code request: %v", shared.ErrAuthFailed, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: device code request returned status %d", shared.ErrAuthFailed, status)
	}

	var code DeviceCode
	if err := json.Unmarshal(data, &code); err != nil {
		return nil, fmt.Errorf("%w: failed to decode device code: %v", shared.ErrAuthFailed, err)
	}
	if code.Interval <= 0 {
		code.Interval = 5
	}
	return &code, nil
}

// PollForToken polls the token endpoint until the user authorizes the device,
// the flow is rejected, or the context expires. Handles the standard
// authorization_pending and slow_down responses.
func PollForToken(ctx context.Context, authBase, clientID, deviceCode string, interval time.Duration) (*TokenData, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")
	form.Set("device_code", deviceCode)

	for {
		data, status, err := postForm(ctx, authBase+"/oauth/token", form)
		if err != nil {
			return nil, fmt.Errorf("%w: token polling: %v", shared.ErrAuthFailed, err)
		}

		if status == http.StatusOK {
			return tokenFromResponse(data, "")
		}

		var payload struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		_ = json.Unmarshal(data, &payload)

		switch payload.Error {
		case "authorization_pending":
		case "slow_down":
			interval += 5 * time.Second
		default:
			return nil, fmt.Errorf("%w: token polling: %s", shared.ErrAuthFailed, firstNonEmpty(payload.Description, payload.Error))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: device authorization timed out", shared.ErrAuthFailed)
		case <-time.After(interval):
		}
	}
}

// RefreshAccessToken exchanges a refresh token for a new access token.
func RefreshAccessToken(ctx context.Context, authBase, clientID, refreshToken string) (*TokenData, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	data, status, err := postForm(ctx, authBase+"/oauth/token", form)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", shared.ErrRefreshFailed, status)
	}
	return tokenFromResponse(data, refreshToken)
}

// tokenFromResponse converts a token endpoint payload into [TokenData].
// The refresh token falls back to the previous one when the server omits it.
func tokenFromResponse(data []byte, previousRefresh string) (*TokenData, error) {
	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token response: %v", shared.ErrAuthFailed, err)
	}

	tokens := &TokenData{
		AccessToken:  payload.AccessToken,
		RefreshToken: firstNonEmpty(payload.RefreshToken, previousRefresh),
		TokenType:    firstNonEmpty(payload.TokenType, "Bearer"),
	}
	expiresIn := payload.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 86400
	}
	tokens.ExpiresAt = time.Now().Unix() + expiresIn
	return tokens, nil
}

func postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return data, resp.StatusCode, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// --- Token files ---

// TokenDir returns the directory holding per-account token files.
func TokenDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = shared.ExpandPath("~/.config")
	}
	return filepath.Join(base, "cardsync", "tokens")
}

// TokenPath returns the token file path for a named account.
func TokenPath(account string) string {
	if account == "" {
		account = "default"
	}
	return filepath.Join(TokenDir(), account+".json")
}

// SaveTokens persists an account's tokens with owner-only permissions.
func SaveTokens(tokens *TokenData, account string) error {
	path := TokenPath(account)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// LoadTokens reads an account's saved tokens. Returns nil without error when
// no token file exists.
func LoadTokens(account string) (*TokenData, error) {
	data, err := os.ReadFile(TokenPath(account))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tokens TokenData
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", TokenPath(account), err)
	}
	return &tokens, nil
}

// ClearTokens removes an account's token file if present.
func ClearTokens(account string) error {
	err := os.Remove(TokenPath(account))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ListAccounts returns the names of all authenticated accounts.
func ListAccounts() ([]string, error) {
	entries, err := os.ReadDir(TokenDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token directory: %w", err)
	}

	var accounts []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		accounts = append(accounts, strings.TrimSuffix(name, ".json"))
	}
	return accounts, nil
}

// EnsureValidToken loads an account's tokens and refreshes them when expired.
func EnsureValidToken(ctx context.Context, clientID, account string) (*TokenData, error) {
	tokens, err := LoadTokens(account)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: no tokens for account %q, run 'cardsync auth yoto' first", shared.ErrNotAuthenticated, account)
	}

	if tokens.IsExpired() {
		tokens, err = RefreshAccessToken(ctx, yotoAuthURL, clientID, tokens.RefreshToken)
		if err != nil {
			return nil, err
		}
		if err := SaveTokens(tokens, account); err != nil {
			return nil, err
		}
	}
	return tokens, nil
}
