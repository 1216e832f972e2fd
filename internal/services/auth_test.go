package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestTokenFiles(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	t.Run("SaveAndLoad", func(t *testing.T) {
		tokens := &TokenData{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
			ExpiresAt:    time.Now().Unix() + 3600,
		}

		if err := SaveTokens(tokens, "household"); err != nil {
			t.Fatalf("failed to save tokens: %v", err)
		}

		info, err := os.Stat(TokenPath("household"))
		if err != nil {
			t.Fatalf("token file should exist: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("token file should be 0600, got %v", info.Mode().Perm())
		}

		loaded, err := LoadTokens("household")
		if err != nil {
			t.Fatalf("failed to load tokens: %v", err)
		}
		if loaded.AccessToken != "access" || loaded.RefreshToken != "refresh" {
			t.Errorf("loaded tokens don't match saved: %+v", loaded)
		}
		if loaded.IsExpired() {
			t.Error("fresh tokens should not be expired")
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		loaded, err := LoadTokens("nobody")
		if err != nil {
			t.Fatalf("missing token file should not error: %v", err)
		}
		if loaded != nil {
			t.Error("missing token file should load as nil")
		}
	})

	t.Run("ListAccounts", func(t *testing.T) {
		if err := SaveTokens(&TokenData{AccessToken: "a"}, "second"); err != nil {
			t.Fatalf("failed to save tokens: %v", err)
		}

		accounts, err := ListAccounts()
		if err != nil {
			t.Fatalf("failed to list accounts: %v", err)
		}

		found := map[string]bool{}
		for _, name := range accounts {
			found[name] = true
		}
		if !found["household"] || !found["second"] {
			t.Errorf("expected household and second accounts, got %v", accounts)
		}
	})

	t.Run("ClearTokens", func(t *testing.T) {
		if err := ClearTokens("second"); err != nil {
			t.Fatalf("failed to clear tokens: %v", err)
		}
		if err := ClearTokens("second"); err != nil {
			t.Errorf("clearing absent tokens should be a no-op: %v", err)
		}
	})
}

func TestDeviceFlow(t *testing.T) {
	t.Run("RequestDeviceCode", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/oauth/device/code" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse form: %v", err)
			}
			if r.PostForm.Get("client_id") != "client1" {
				t.Errorf("expected client_id client1, got %s", r.PostForm.Get("client_id"))
			}
			fmt.Fprint(w, `{
				"device_code": "dev123", "user_code": "ABCD-EFGH",
				"verification_uri_complete": "https://login.example/activate?code=ABCD-EFGH",
				"expires_in": 300, "interval": 5
			}`)
		}))
		defer server.Close()

		code, err := RequestDeviceCode(context.Background(), server.URL, "client1")
		if err != nil {
			t.Fatalf("failed to request device code: %v", err)
		}
		if code.UserCode != "ABCD-EFGH" {
			t.Errorf("unexpected user code %s", code.UserCode)
		}
		if code.Interval != 5 {
			t.Errorf("expected interval 5, got %d", code.Interval)
		}
	})

	t.Run("PollForToken", func(t *testing.T) {
		call := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			call++
			if call == 1 {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"error": "authorization_pending"}`)
				return
			}
			fmt.Fprint(w, `{"access_token": "at", "refresh_token": "rt", "token_type": "Bearer", "expires_in": 86400}`)
		}))
		defer server.Close()

		tokens, err := PollForToken(context.Background(), server.URL, "client1", "dev123", time.Millisecond)
		if err != nil {
			t.Fatalf("failed to poll for token: %v", err)
		}
		if tokens.AccessToken != "at" {
			t.Errorf("unexpected access token %s", tokens.AccessToken)
		}
		if call != 2 {
			t.Errorf("expected 2 polls, got %d", call)
		}
	})

	t.Run("PollForTokenDenied", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error": "access_denied", "error_description": "user declined"}`)
		}))
		defer server.Close()

		if _, err := PollForToken(context.Background(), server.URL, "client1", "dev123", time.Millisecond); err == nil {
			t.Error("denied authorization should fail")
		}
	})

	t.Run("RefreshAccessToken", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse form: %v", err)
			}
			if r.PostForm.Get("grant_type") != "refresh_token" {
				t.Errorf("expected refresh_token grant, got %s", r.PostForm.Get("grant_type"))
			}
			fmt.Fprint(w, `{"access_token": "new-at", "expires_in": 3600}`)
		}))
		defer server.Close()

		tokens, err := RefreshAccessToken(context.Background(), server.URL, "client1", "old-rt")
		if err != nil {
			t.Fatalf("failed to refresh: %v", err)
		}
		if tokens.AccessToken != "new-at" {
			t.Errorf("unexpected access token %s", tokens.AccessToken)
		}
		if tokens.RefreshToken != "old-rt" {
			t.Error("refresh token should fall back to the previous one when omitted")
		}
	})
}
