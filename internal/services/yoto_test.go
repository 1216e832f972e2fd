package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/cardsync/internal/models"
)

// newTestYoto builds a YotoService against a test server with a fresh token
// and a sleep recorder so backoff tests run instantly.
func newTestYoto(serverURL string, sleeps *[]time.Duration) *YotoService {
	return NewYotoService(YotoOpts{
		Tokens:  &TokenData{AccessToken: "token", ExpiresAt: time.Now().Unix() + 3600},
		BaseURL: serverURL,
		Sleep: func(d time.Duration) {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
		},
	})
}

func TestYotoService(t *testing.T) {
	t.Run("ListCards", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/content/mine" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer token" {
				t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
			}
			fmt.Fprint(w, `{"cards": [
				{"cardId": "c1", "title": "Car Tunes", "metadata": {"description": "https://open.spotify.com/playlist/abc"}},
				{"cardId": "c2", "title": "Stories"}
			]}`)
		}))
		defer server.Close()

		cards, err := newTestYoto(server.URL, nil).ListCards(context.Background())
		if err != nil {
			t.Fatalf("failed to list cards: %v", err)
		}
		if len(cards) != 2 {
			t.Fatalf("expected 2 cards, got %d", len(cards))
		}
		if cards[0].Description != "https://open.spotify.com/playlist/abc" {
			t.Errorf("unexpected description %q", cards[0].Description)
		}
	})

	t.Run("RequestUploadTarget", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("sha256"); got != "abc123" {
				t.Errorf("expected sha256 abc123, got %s", got)
			}
			fmt.Fprint(w, `{"upload": {"uploadUrl": "https://s3.example/put", "uploadId": "u1"}}`)
		}))
		defer server.Close()

		target, err := newTestYoto(server.URL, nil).RequestUploadTarget(context.Background(), "abc123", "track.mp3")
		if err != nil {
			t.Fatalf("failed to request upload target: %v", err)
		}
		if target.AlreadyExists {
			t.Error("target with upload URL should not report already-exists")
		}
		if target.UploadID != "u1" {
			t.Errorf("expected upload id u1, got %s", target.UploadID)
		}
	})

	t.Run("RequestUploadTargetAlreadyExists", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"upload": {"uploadUrl": "", "uploadId": "u2"}}`)
		}))
		defer server.Close()

		target, err := newTestYoto(server.URL, nil).RequestUploadTarget(context.Background(), "abc123", "track.mp3")
		if err != nil {
			t.Fatalf("failed to request upload target: %v", err)
		}
		if !target.AlreadyExists {
			t.Error("empty upload URL means the file already exists by checksum")
		}
	})

	t.Run("PollTranscode", func(t *testing.T) {
		responses := []func(w http.ResponseWriter){
			func(w http.ResponseWriter) { w.WriteHeader(http.StatusAccepted) },
			func(w http.ResponseWriter) {
				fmt.Fprint(w, `{"transcode": {"transcodedSha256": "", "status": "pending"}}`)
			},
			func(w http.ResponseWriter) {
				fmt.Fprint(w, `{"transcode": {"transcodedSha256": "sha999", "transcodedInfo": {"duration": 180, "fileSize": 4096}}}`)
			},
		}
		call := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			responses[call](w)
			call++
		}))
		defer server.Close()

		yoto := newTestYoto(server.URL, nil)

		status, err := yoto.PollTranscode(context.Background(), "u1")
		if err != nil {
			t.Fatalf("202 poll failed: %v", err)
		}
		if status.State != TranscodePending {
			t.Errorf("202 should be pending, got %s", status.State)
		}

		status, err = yoto.PollTranscode(context.Background(), "u1")
		if err != nil {
			t.Fatalf("empty-sha poll failed: %v", err)
		}
		if status.State != TranscodePending {
			t.Errorf("missing sha should be pending, got %s", status.State)
		}

		status, err = yoto.PollTranscode(context.Background(), "u1")
		if err != nil {
			t.Fatalf("done poll failed: %v", err)
		}
		if status.State != TranscodeDone {
			t.Fatalf("expected done, got %s", status.State)
		}
		if status.MediaID != "sha999" || status.Checksum != "sha999" {
			t.Errorf("expected media id and checksum sha999, got %s / %s", status.MediaID, status.Checksum)
		}
		if status.Duration != 180 {
			t.Errorf("expected duration 180, got %d", status.Duration)
		}
	})

	t.Run("PollTranscodeFailed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"transcode": {"status": "failed"}}`)
		}))
		defer server.Close()

		status, err := newTestYoto(server.URL, nil).PollTranscode(context.Background(), "u1")
		if err != nil {
			t.Fatalf("failed poll should not error: %v", err)
		}
		if status.State != TranscodeFailed {
			t.Errorf("expected failed state, got %s", status.State)
		}
	})

	t.Run("RateLimitBackoff", func(t *testing.T) {
		call := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			call++
			if call <= 2 {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, `{"cards": []}`)
		}))
		defer server.Close()

		var sleeps []time.Duration
		if _, err := newTestYoto(server.URL, &sleeps).ListCards(context.Background()); err != nil {
			t.Fatalf("rate-limited request should eventually succeed: %v", err)
		}

		if len(sleeps) != 2 {
			t.Fatalf("expected 2 backoff sleeps, got %d", len(sleeps))
		}
		for _, d := range sleeps {
			if d != 2*time.Second {
				t.Errorf("expected 2s sleep from Retry-After hint, got %s", d)
			}
			if d > maxRetryAfter {
				t.Errorf("backoff %s exceeds cap %s", d, maxRetryAfter)
			}
		}
	})

	t.Run("RateLimitHintAboveCap", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		var sleeps []time.Duration
		if _, err := newTestYoto(server.URL, &sleeps).ListCards(context.Background()); err == nil {
			t.Error("Retry-After above the cap should fail the request")
		}
		if len(sleeps) != 0 {
			t.Errorf("should not sleep when rejecting an over-cap hint, slept %v", sleeps)
		}
	})

	t.Run("ExponentialBackoffWithoutHint", func(t *testing.T) {
		call := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			call++
			if call <= 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, `{"cards": []}`)
		}))
		defer server.Close()

		var sleeps []time.Duration
		if _, err := newTestYoto(server.URL, &sleeps).ListCards(context.Background()); err != nil {
			t.Fatalf("request should eventually succeed: %v", err)
		}

		want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
		if len(sleeps) != len(want) {
			t.Fatalf("expected %d sleeps, got %d", len(want), len(sleeps))
		}
		for i, d := range sleeps {
			if d != want[i] {
				t.Errorf("sleep %d: expected %s, got %s", i, want[i], d)
			}
		}
	})

	t.Run("UpdateCardContent", func(t *testing.T) {
		var body map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/content" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("failed to decode body: %v", err)
			}
			fmt.Fprint(w, `{}`)
		}))
		defer server.Close()

		content := &models.CardContent{
			CardID: "c1",
			Title:  "Bedtime",
			Chapters: []models.Chapter{
				{Title: "A - One", TrackID: "t1", MediaID: "sha1", Duration: 90, IconMediaID: "icon1"},
				{Title: "B - Two", TrackID: "t2", MediaID: "sha2", Duration: 120},
			},
			CoverRef: "https://media.example/covers/123",
		}
		if err := newTestYoto(server.URL, nil).UpdateCardContent(context.Background(), content); err != nil {
			t.Fatalf("failed to update card content: %v", err)
		}

		if body["cardId"] != "c1" {
			t.Errorf("expected cardId c1, got %v", body["cardId"])
		}

		chapters := body["content"].(map[string]any)["chapters"].([]any)
		if len(chapters) != 2 {
			t.Fatalf("expected 2 chapters, got %d", len(chapters))
		}

		first := chapters[0].(map[string]any)
		if first["key"] != "01" {
			t.Errorf("chapter keys should be zero padded, got %v", first["key"])
		}
		track := first["tracks"].([]any)[0].(map[string]any)
		if track["trackUrl"] != "yoto:#sha1" {
			t.Errorf("unexpected trackUrl %v", track["trackUrl"])
		}
		if first["display"].(map[string]any)["icon16x16"] != "yoto:#icon1" {
			t.Errorf("unexpected chapter icon %v", first["display"])
		}

		second := chapters[1].(map[string]any)
		if _, hasDisplay := second["display"]; hasDisplay {
			t.Error("chapter without icon should carry no display block")
		}

		cover := body["metadata"].(map[string]any)["cover"].(map[string]any)
		if cover["imageL"] != "https://media.example/covers/123" {
			t.Errorf("unexpected cover %v", cover["imageL"])
		}
	})

	t.Run("UploadImage", func(t *testing.T) {
		imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png-bytes"))
		}))
		defer imageServer.Close()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/media/displayIcons/user/me/upload" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Content-Type") != "image/png" {
				t.Errorf("content type should pass through, got %s", r.Header.Get("Content-Type"))
			}
			fmt.Fprint(w, `{"displayIcon": {"mediaId": "media42"}}`)
		}))
		defer server.Close()

		mediaID, err := newTestYoto(server.URL, nil).UploadImage(context.Background(), imageServer.URL+"/art.png")
		if err != nil {
			t.Fatalf("failed to upload image: %v", err)
		}
		if mediaID != "media42" {
			t.Errorf("expected media42, got %s", mediaID)
		}
	})

	t.Run("UploadCoverImage", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/media/coverImage/user/me/upload" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			query := r.URL.Query()
			if query.Get("imageUrl") != "https://img.example/cover.jpg" {
				t.Errorf("source URL should pass as a query param, got %q", query.Get("imageUrl"))
			}
			if query.Get("coverType") != "myo" {
				t.Errorf("expected coverType myo, got %q", query.Get("coverType"))
			}
			fmt.Fprint(w, `{"coverImage": {"mediaUrl": "https://media.yoto/covers/abc"}}`)
		}))
		defer server.Close()

		mediaURL, err := newTestYoto(server.URL, nil).UploadCoverImage(context.Background(), "https://img.example/cover.jpg")
		if err != nil {
			t.Fatalf("failed to upload cover: %v", err)
		}
		if mediaURL != "https://media.yoto/covers/abc" {
			t.Errorf("expected cover media URL, got %s", mediaURL)
		}
	})
}
