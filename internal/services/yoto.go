// Yoto API implementation of [Platform]
//
// Covers the MYO card library, the four-step audio ingest flow (upload URL,
// presigned PUT, transcode polling, checksum confirmation), image ingest, and
// card content updates. Every authenticated call goes through a client-side
// [rate.Limiter] and a capped Retry-After backoff for 429 responses.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/shared"
	"golang.org/x/time/rate"
)

const (
	yotoBaseURL = "https://api.yotoplay.com"

	// maxRetryAfter caps the delay honored from a Retry-After hint. A hint
	// above the cap fails the request instead of stalling the whole run.
	maxRetryAfter = 60 * time.Second
)

// YotoOpts contains configuration options for creating a [YotoService].
type YotoOpts struct {
	Tokens    *TokenData
	ClientID  string
	Account   string
	BaseURL   string
	RateLimit float64 // requests per second, <= 0 disables the client-side limiter
	Logger    *log.Logger
	Sleep     func(time.Duration) // injectable for tests, defaults to time.Sleep
}

// YotoService implements [Platform] against the Yoto API.
type YotoService struct {
	tokens     *TokenData
	clientID   string
	account    string
	baseURL    string
	authURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	sleep      func(time.Duration)
}

// NewYotoService creates a Yoto platform client for one authenticated account.
func NewYotoService(opts YotoOpts) *YotoService {
	if opts.BaseURL == "" {
		opts.BaseURL = yotoBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &YotoService{
		tokens:     opts.Tokens,
		clientID:   opts.ClientID,
		account:    opts.Account,
		baseURL:    opts.BaseURL,
		authURL:    yotoAuthURL,
		httpClient: http.DefaultClient,
		limiter:    limiter,
		logger:     opts.Logger,
		sleep:      opts.Sleep,
	}
}

func (y *YotoService) Name() string {
	return "Yoto"
}

// refreshIfExpired swaps in a fresh access token before a request when the
// saved one has lapsed.
func (y *YotoService) refreshIfExpired(ctx context.Context) error {
	if y.tokens == nil {
		return shared.ErrNotAuthenticated
	}
	if !y.tokens.IsExpired() || y.clientID == "" {
		return nil
	}

	refreshed, err := RefreshAccessToken(ctx, y.authURL, y.clientID, y.tokens.RefreshToken)
	if err != nil {
		return err
	}
	y.tokens = refreshed
	if err := SaveTokens(refreshed, y.account); err != nil {
		y.logger.Warn("failed to persist refreshed tokens", "account", y.account, "err", err)
	}
	return nil
}

// retryAfterDelay computes the backoff for one rate-limit response: the
// provider hint when present, otherwise exponential in the attempt count,
// always capped. A hint above the cap is rejected outright.
func retryAfterDelay(header string, attempt int) (time.Duration, error) {
	if header != "" {
		secs, err := strconv.Atoi(header)
		if err == nil {
			delay := time.Duration(secs) * time.Second
			if delay > maxRetryAfter {
				return 0, &shared.APIError{
					Kind:       shared.KindPermanent,
					StatusCode: 429,
					Message:    fmt.Sprintf("rate limited with Retry-After %ds (exceeds %s cap)", secs, maxRetryAfter),
				}
			}
			return delay, nil
		}
	}

	delay := time.Duration(1<<min(attempt, 6)) * time.Second
	if delay > maxRetryAfter {
		delay = maxRetryAfter
	}
	return delay, nil
}

// doRequest performs an authenticated request against the Yoto API.
//
// 429 responses are retried with capped backoff on their own counter; a 401
// triggers one token refresh. Other non-2xx statuses become [shared.APIError].
func (y *YotoService) doRequest(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, result any) error {
	if err := y.refreshIfExpired(ctx); err != nil {
		return err
	}

	endpoint := y.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	rateAttempts := 0
	refreshed := false
	for {
		if y.limiter != nil {
			if err := y.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+y.tokens.AccessToken)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := y.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			header := resp.Header.Get("Retry-After")
			resp.Body.Close()
			delay, err := retryAfterDelay(header, rateAttempts)
			if err != nil {
				return err
			}
			y.logger.Warn("rate limited", "path", path, "delay", delay)
			y.sleep(delay)
			rateAttempts++
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized && y.clientID != "" && !refreshed {
			resp.Body.Close()
			y.tokens.ExpiresAt = 0 // force refresh
			if err := y.refreshIfExpired(ctx); err != nil {
				return err
			}
			refreshed = true
			continue
		}

		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return shared.NewAPIError(resp.StatusCode, fmt.Sprintf("yoto %s %s: %s", method, path, strings.TrimSpace(string(msg))))
		}

		if result != nil {
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			// 202 (transcode in progress) arrives with an empty body
			if len(data) > 0 {
				if err := json.Unmarshal(data, result); err != nil {
					return fmt.Errorf("failed to decode response: %w", err)
				}
			}
		}
		return nil
	}
}

// --- Cards ---

type yotoCardEnvelope struct {
	CardID   string `json:"cardId"`
	Title    string `json:"title"`
	Metadata struct {
		Description string `json:"description"`
	} `json:"metadata"`
}

func (c yotoCardEnvelope) toModel() models.Card {
	return models.Card{ID: c.CardID, Title: c.Title, Description: c.Metadata.Description}
}

// ListCards returns the user-created MYO cards in the account library.
func (y *YotoService) ListCards(ctx context.Context) ([]models.Card, error) {
	var response struct {
		Cards []yotoCardEnvelope `json:"cards"`
	}
	if err := y.doRequest(ctx, http.MethodGet, "/content/mine", nil, nil, "", &response); err != nil {
		return nil, err
	}

	cards := make([]models.Card, 0, len(response.Cards))
	for _, c := range response.Cards {
		cards = append(cards, c.toModel())
	}
	return cards, nil
}

// GetCard fetches one card with its current description.
func (y *YotoService) GetCard(ctx context.Context, cardID string) (*models.Card, error) {
	var envelope struct {
		Card yotoCardEnvelope `json:"card"`
	}
	if err := y.doRequest(ctx, http.MethodGet, "/content/"+cardID, nil, nil, "", &envelope); err != nil {
		return nil, err
	}
	card := envelope.Card.toModel()
	if card.ID == "" {
		card.ID = cardID
	}
	return &card, nil
}

// --- Upload flow ---

// RequestUploadTarget asks for a presigned audio upload URL. An empty
// uploadUrl in the response means the platform already has the file by
// checksum and nothing needs to be transmitted.
func (y *YotoService) RequestUploadTarget(ctx context.Context, checksum, filename string) (*UploadTarget, error) {
	query := url.Values{}
	query.Set("sha256", checksum)
	query.Set("filename", filename)

	var response struct {
		Upload struct {
			UploadURL string `json:"uploadUrl"`
			UploadID  string `json:"uploadId"`
		} `json:"upload"`
	}
	if err := y.doRequest(ctx, http.MethodGet, "/media/transcode/audio/uploadUrl", query, nil, "", &response); err != nil {
		return nil, err
	}

	return &UploadTarget{
		AlreadyExists: response.Upload.UploadURL == "",
		UploadURL:     response.Upload.UploadURL,
		UploadID:      response.Upload.UploadID,
	}, nil
}

// UploadAudio transmits a local audio file to the presigned target.
// The presigned URL is unauthenticated, so this bypasses doRequest.
func (y *YotoService) UploadAudio(ctx context.Context, uploadURL, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %v", shared.ErrUploadFailed, path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/mpeg")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", shared.ErrUploadFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// PollTranscode performs a single transcode status check for an upload.
func (y *YotoService) PollTranscode(ctx context.Context, uploadID string) (*TranscodeStatus, error) {
	query := url.Values{}
	query.Set("loudnorm", "false")

	var response struct {
		Transcode struct {
			Status           string `json:"status"`
			TranscodedSHA256 string `json:"transcodedSha256"`
			TranscodedInfo   struct {
				Duration int `json:"duration"`
				FileSize int `json:"fileSize"`
			} `json:"transcodedInfo"`
		} `json:"transcode"`
	}

	err := y.doRequest(ctx, http.MethodGet, "/media/upload/"+uploadID+"/transcoded", query, nil, "", &response)
	if err != nil {
		var apiErr *shared.APIError
		// 202 means still transcoding; doRequest treats 2xx as success, so only
		// classify real failures here.
		if errors.As(err, &apiErr) && apiErr.Kind == shared.KindPermanent {
			return &TranscodeStatus{State: TranscodeFailed}, nil
		}
		return nil, err
	}

	t := response.Transcode
	if t.Status == "failed" || t.Status == "error" {
		return &TranscodeStatus{State: TranscodeFailed}, nil
	}
	if t.TranscodedSHA256 == "" {
		return &TranscodeStatus{State: TranscodePending}, nil
	}

	return &TranscodeStatus{
		State:    TranscodeDone,
		MediaID:  t.TranscodedSHA256,
		Checksum: t.TranscodedSHA256,
		Duration: t.TranscodedInfo.Duration,
		FileSize: t.TranscodedInfo.FileSize,
	}, nil
}

// --- Images ---

// UploadImage downloads the source image and ingests it as a 16x16 display
// icon, returning the platform media id.
func (y *YotoService) UploadImage(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: image download: %v", shared.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: image download status %d", shared.ErrUploadFailed, resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: image read: %v", shared.ErrUploadFailed, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	query := url.Values{}
	query.Set("autoConvert", "true")

	var response struct {
		DisplayIcon struct {
			MediaID string `json:"mediaId"`
		} `json:"displayIcon"`
	}
	if err := y.doRequest(ctx, http.MethodPost, "/media/displayIcons/user/me/upload", query, content, contentType, &response); err != nil {
		return "", err
	}
	return response.DisplayIcon.MediaID, nil
}

// UploadCoverImage ingests cover art through the cover endpoint, which
// fetches the source URL server-side and returns a media URL for the card's
// metadata cover field. Not interchangeable with [YotoService.UploadImage]:
// icons yield media ids, covers yield media URLs.
func (y *YotoService) UploadCoverImage(ctx context.Context, imageURL string) (string, error) {
	query := url.Values{}
	query.Set("autoconvert", "true")
	query.Set("coverType", "myo")
	query.Set("imageUrl", imageURL)

	var response struct {
		CoverImage struct {
			MediaURL string `json:"mediaUrl"`
		} `json:"coverImage"`
	}
	if err := y.doRequest(ctx, http.MethodPost, "/media/coverImage/user/me/upload", query, nil, "", &response); err != nil {
		return "", err
	}
	return response.CoverImage.MediaURL, nil
}

// --- Content ---

// UpdateCardContent replaces a card's chapter list and cover image.
// The full structure is always re-emitted; individual chapters are never patched.
func (y *YotoService) UpdateCardContent(ctx context.Context, content *models.CardContent) error {
	body, err := json.Marshal(buildContentBody(content))
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}
	return y.doRequest(ctx, http.MethodPost, "/content", nil, body, "application/json", nil)
}

// buildContentBody maps the domain card content onto the Yoto wire shape:
// zero-padded chapter keys, yoto:#<sha> track URLs, optional 16x16 icons.
func buildContentBody(content *models.CardContent) map[string]any {
	chapters := make([]map[string]any, 0, len(content.Chapters))
	for i, ch := range content.Chapters {
		key := fmt.Sprintf("%02d", i+1)
		track := map[string]any{
			"key":          key,
			"title":        ch.Title,
			"trackUrl":     "yoto:#" + ch.MediaID,
			"duration":     ch.Duration,
			"format":       "aac",
			"type":         "audio",
			"overlayLabel": key,
		}
		entry := map[string]any{
			"key":          key,
			"title":        ch.Title,
			"overlayLabel": key,
			"duration":     ch.Duration,
			"tracks":       []map[string]any{track},
		}
		if ch.IconMediaID != "" {
			icon := map[string]any{"icon16x16": "yoto:#" + ch.IconMediaID}
			track["display"] = icon
			entry["display"] = icon
		}
		chapters = append(chapters, entry)
	}

	body := map[string]any{
		"cardId":  content.CardID,
		"title":   content.Title,
		"content": map[string]any{"chapters": chapters},
	}
	if content.CoverRef != "" {
		body["metadata"] = map[string]any{
			"cover": map[string]any{"imageL": content.CoverRef},
		}
	}
	return body
}
