package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/vslobodin/channel-mirror-bot/internal/models"
	"github.com/vslobodin/channel-mirror-bot/internal/ratelimit"
)

const (
	// Telegram caps captions at 1024 characters. A small slack keeps the
	// built caption clearly under the cap after the ellipsis is added.
	captionLimit = 1024
	captionSlack = 5

	mediaGroupLimit = 10
	maxSendAttempts = 5
)

// TelegramPublisher delivers posts to one chat through the Bot API.
type TelegramPublisher struct {
	botToken string
	chatID   string
	baseURL  string
	client   *resty.Client
}

// Ensure TelegramPublisher implements Publisher.
var _ Publisher = (*TelegramPublisher)(nil)

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// NewTelegramPublisher creates a publisher for one destination chat.
func NewTelegramPublisher(botToken, chatID string) *TelegramPublisher {
	return &TelegramPublisher{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  "https://api.telegram.org",
		client:   resty.New().SetTimeout(60 * time.Second),
	}
}

// Initialize verifies the bot token with getMe.
func (p *TelegramPublisher) Initialize(ctx context.Context) error {
	body, err := p.call(ctx, "getMe", nil, nil)
	if err != nil {
		return fmt.Errorf("bot token check failed: %w", err)
	}

	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &me); err == nil && me.Username != "" {
		logrus.Infof("publishing as @%s to chat %s", me.Username, p.chatID)
	}
	return nil
}

// Publish delivers one post and returns the destination message id. Posts
// without media become a text message, a single attachment becomes the
// matching send method, and multiple attachments become a media group with
// the caption on the first item.
func (p *TelegramPublisher) Publish(ctx context.Context, post models.Post) (string, error) {
	caption := buildCaption(post)

	switch {
	case len(post.Media) == 0:
		return p.sendMessage(ctx, caption)
	case len(post.Media) == 1:
		return p.sendSingleMedia(ctx, post.Media[0], caption)
	default:
		return p.sendMediaGroup(ctx, post.Media, caption)
	}
}

func (p *TelegramPublisher) Close() error { return nil }

func (p *TelegramPublisher) sendMessage(ctx context.Context, text string) (string, error) {
	body, err := p.call(ctx, "sendMessage", map[string]string{
		"chat_id":                  p.chatID,
		"text":                     text,
		"disable_web_page_preview": "true",
	}, nil)
	if err != nil {
		return "", err
	}
	return messageID(body)
}

func (p *TelegramPublisher) sendSingleMedia(ctx context.Context, media models.Media, caption string) (string, error) {
	var method, field string
	switch media.Type {
	case models.MediaPhoto:
		method, field = "sendPhoto", "photo"
	case models.MediaVideo:
		method, field = "sendVideo", "video"
	case models.MediaAudio:
		method, field = "sendAudio", "audio"
	default:
		method, field = "sendDocument", "document"
	}

	params := map[string]string{
		"chat_id": p.chatID,
		"caption": caption,
	}

	var files map[string]string
	if media.FilePath != "" {
		params[field] = "attach://file0"
		files = map[string]string{"file0": media.FilePath}
	} else {
		params[field] = media.URL
	}

	body, err := p.call(ctx, method, params, files)
	if err != nil {
		return "", err
	}
	return messageID(body)
}

func (p *TelegramPublisher) sendMediaGroup(ctx context.Context, media []models.Media, caption string) (string, error) {
	if len(media) > mediaGroupLimit {
		logrus.Warnf("trimming media group from %d to %d items", len(media), mediaGroupLimit)
		media = media[:mediaGroupLimit]
	}

	items := make([]map[string]string, 0, len(media))
	files := make(map[string]string)
	for i, m := range media {
		item := map[string]string{"type": mediaGroupType(m.Type)}
		if m.FilePath != "" {
			name := fmt.Sprintf("file%d", i)
			item["media"] = "attach://" + name
			files[name] = m.FilePath
		} else {
			item["media"] = m.URL
		}
		if i == 0 {
			item["caption"] = caption
		}
		items = append(items, item)
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode media group: %w", err)
	}

	body, err := p.call(ctx, "sendMediaGroup", map[string]string{
		"chat_id": p.chatID,
		"media":   string(encoded),
	}, files)
	if err != nil {
		return "", err
	}

	// A media group comes back as an array of messages; the first id
	// identifies the album.
	var messages []struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(body, &messages); err != nil || len(messages) == 0 {
		return "", fmt.Errorf("unexpected sendMediaGroup result: %s", string(body))
	}
	return fmt.Sprintf("%d", messages[0].MessageID), nil
}

func mediaGroupType(t models.MediaType) string {
	switch t {
	case models.MediaVideo:
		return "video"
	case models.MediaAudio:
		return "audio"
	case models.MediaDocument:
		return "document"
	default:
		return "photo"
	}
}

// call performs one Bot API request. A 429 response is retried transparently
// after the retry_after the API asks for, up to maxSendAttempts.
func (p *TelegramPublisher) call(ctx context.Context, method string, params map[string]string, files map[string]string) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", p.baseURL, p.botToken, method)

	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		req := p.client.R().SetContext(ctx)
		if len(files) > 0 {
			req.SetFormData(params)
			for name, path := range files {
				req.SetFile(name, path)
			}
		} else if len(params) > 0 {
			req.SetFormData(params)
		}

		resp, err := req.Post(url)
		if err != nil {
			return nil, fmt.Errorf("%s request failed: %w", method, err)
		}

		var api apiResponse
		if err := json.Unmarshal(resp.Body(), &api); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
		}

		if api.OK {
			return api.Result, nil
		}

		if api.ErrorCode == 429 && api.Parameters != nil {
			delay := time.Duration(api.Parameters.RetryAfter) * time.Second
			logrus.Warnf("%s rate limited, retrying in %s (attempt %d/%d)", method, delay, attempt, maxSendAttempts)
			if err := ratelimit.Wait(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		return nil, fmt.Errorf("%s failed with code %d: %s", method, api.ErrorCode, api.Description)
	}

	return nil, fmt.Errorf("%s still rate limited after %d attempts", method, maxSendAttempts)
}

func messageID(body json.RawMessage) (string, error) {
	var msg struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(body, &msg); err != nil || msg.MessageID == 0 {
		return "", fmt.Errorf("unexpected send result: %s", string(body))
	}
	return fmt.Sprintf("%d", msg.MessageID), nil
}

// buildCaption appends the date and link footer and truncates the text so
// the whole caption fits the Telegram limit.
func buildCaption(post models.Post) string {
	footer := fmt.Sprintf("\n\n📅 %s\n🔗 %s", post.CreatedAt.Format("02.01.2006 15:04"), post.URL)

	budget := captionLimit - captionSlack - len([]rune(footer))
	text := []rune(post.Text)
	if len(text) > budget {
		text = append(text[:budget], []rune("...")...)
	}

	return string(text) + footer
}
