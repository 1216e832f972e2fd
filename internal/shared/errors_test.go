package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	t.Run("ClassifyStatus", func(t *testing.T) {
		cases := []struct {
			status int
			want   APIKind
		}{
			{429, KindRateLimited},
			{500, KindTransient},
			{503, KindTransient},
			{404, KindPermanent},
			{400, KindPermanent},
			{401, KindPermanent},
		}

		for _, tc := range cases {
			if got := ClassifyStatus(tc.status); got != tc.want {
				t.Errorf("ClassifyStatus(%d) = %v, want %v", tc.status, got, tc.want)
			}
		}
	})

	t.Run("SentinelMatching", func(t *testing.T) {
		rateLimited := &APIError{Kind: KindRateLimited, StatusCode: 429, RetryAfter: 2 * time.Second, Message: "slow down"}
		if !errors.Is(rateLimited, ErrRateLimited) {
			t.Error("rate-limited APIError should match ErrRateLimited")
		}

		permanent := NewAPIError(404, "card missing")
		if errors.Is(permanent, ErrRateLimited) {
			t.Error("permanent APIError should not match ErrRateLimited")
		}
		if !errors.Is(permanent, ErrAPIRequest) {
			t.Error("permanent APIError should match ErrAPIRequest")
		}
	})

	t.Run("ErrorsAs", func(t *testing.T) {
		wrapped := fmt.Errorf("request failed: %w", NewAPIError(503, "upstream down"))

		var apiErr *APIError
		if !errors.As(wrapped, &apiErr) {
			t.Fatal("expected to unwrap APIError")
		}
		if apiErr.Kind != KindTransient {
			t.Errorf("expected transient kind, got %v", apiErr.Kind)
		}
		if apiErr.StatusCode != 503 {
			t.Errorf("expected status 503, got %d", apiErr.StatusCode)
		}
	})

	t.Run("TranscodeSentinelsDistinct", func(t *testing.T) {
		if errors.Is(ErrTranscodeTimeout, ErrTranscodeFailed) {
			t.Error("timeout must be distinguishable from platform transcode failure")
		}
	})
}
