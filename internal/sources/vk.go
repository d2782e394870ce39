package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/vslobodin/channel-mirror-bot/internal/content"
	"github.com/vslobodin/channel-mirror-bot/internal/models"
)

const vkMaxWallCount = 100

// VKSource reads a community wall through the VK API wall.get method.
type VKSource struct {
	sourceURL   string
	groupID     string
	accessToken string
	apiVersion  string
	client      *resty.Client
}

type vkWallResponse struct {
	Response *struct {
		Items []vkWallPost `json:"items"`
	} `json:"response"`
	Error *struct {
		ErrorCode int    `json:"error_code"`
		ErrorMsg  string `json:"error_msg"`
	} `json:"error"`
}

type vkWallPost struct {
	ID          int64          `json:"id"`
	OwnerID     int64          `json:"owner_id"`
	Date        int64          `json:"date"`
	Text        string         `json:"text"`
	Attachments []vkAttachment `json:"attachments"`
}

type vkAttachment struct {
	Type  string   `json:"type"`
	Photo *vkPhoto `json:"photo"`
	Video *vkVideo `json:"video"`
}

type vkPhoto struct {
	Sizes []vkPhotoSize `json:"sizes"`
}

type vkPhotoSize struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type vkVideo struct {
	ID       int64 `json:"id"`
	OwnerID  int64 `json:"owner_id"`
	Width    int   `json:"width"`
	Height   int   `json:"height"`
	Duration int   `json:"duration"`
}

// NewVKSource creates a source for one community URL.
func NewVKSource(sourceURL, accessToken, apiVersion string) (*VKSource, error) {
	groupID := content.ExtractVKID(sourceURL)
	if groupID == "" {
		return nil, fmt.Errorf("cannot extract community id from %s", sourceURL)
	}

	return &VKSource{
		sourceURL:   sourceURL,
		groupID:     groupID,
		accessToken: accessToken,
		apiVersion:  apiVersion,
		client:      sharedClient(models.PlatformVK),
	}, nil
}

func (v *VKSource) Name() string { return string(models.PlatformVK) }

func (v *VKSource) URL() string { return v.sourceURL }

// Initialize checks the API credentials are present.
func (v *VKSource) Initialize(ctx context.Context) error {
	if v.accessToken == "" {
		return fmt.Errorf("vk access token is required for %s", v.sourceURL)
	}

	logrus.Infof("vk source ready: %s", v.groupID)
	return nil
}

// Fetch returns up to limit wall posts created at or after since. The API
// lists newest first, so iteration stops at the first older post.
func (v *VKSource) Fetch(ctx context.Context, limit int, since time.Time) ([]models.Post, error) {
	count := limit
	if count <= 0 || count > vkMaxWallCount {
		count = vkMaxWallCount
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"domain":       v.groupID,
			"count":        fmt.Sprintf("%d", count),
			"filter":       "owner",
			"access_token": v.accessToken,
			"v":            v.apiVersion,
		}).
		Get("https://api.vk.com/method/wall.get")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vk wall %s: %w", v.groupID, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("vk API returned status %d", resp.StatusCode())
	}

	var wall vkWallResponse
	if err := json.Unmarshal(resp.Body(), &wall); err != nil {
		return nil, fmt.Errorf("failed to decode vk response: %w", err)
	}
	if wall.Error != nil {
		return nil, fmt.Errorf("vk API error %d: %s", wall.Error.ErrorCode, wall.Error.ErrorMsg)
	}
	if wall.Response == nil {
		return nil, fmt.Errorf("vk API returned no payload")
	}

	var posts []models.Post
	for _, item := range wall.Response.Items {
		createdAt := time.Unix(item.Date, 0).UTC()
		if !since.IsZero() && createdAt.Before(since) {
			break
		}
		if post, ok := v.parsePost(item); ok {
			posts = append(posts, post)
		}
	}

	return posts, nil
}

func (v *VKSource) Close() error { return nil }

func (v *VKSource) parsePost(item vkWallPost) (models.Post, bool) {
	text := content.SanitizeText(item.Text)

	var media []models.Media
	for _, att := range item.Attachments {
		switch att.Type {
		case "photo":
			if att.Photo == nil || len(att.Photo.Sizes) == 0 {
				continue
			}
			largest := att.Photo.Sizes[0]
			for _, size := range att.Photo.Sizes[1:] {
				if size.Width > largest.Width {
					largest = size
				}
			}
			if largest.URL != "" {
				media = append(media, models.Media{
					Type:   models.MediaPhoto,
					URL:    largest.URL,
					Width:  largest.Width,
					Height: largest.Height,
				})
			}

		case "video":
			if att.Video == nil || att.Video.ID == 0 || att.Video.OwnerID == 0 {
				continue
			}
			media = append(media, models.Media{
				Type:     models.MediaVideo,
				URL:      fmt.Sprintf("https://vk.com/video%d_%d", att.Video.OwnerID, att.Video.ID),
				Width:    att.Video.Width,
				Height:   att.Video.Height,
				Duration: att.Video.Duration,
			})
		}
	}

	if text == "" && len(media) == 0 {
		logrus.Debugf("skipping contentless vk post %s/%d", v.groupID, item.ID)
		return models.Post{}, false
	}

	post := models.Post{
		Platform:  models.PlatformVK,
		SourceID:  v.groupID,
		PostID:    fmt.Sprintf("%d", item.ID),
		Text:      text,
		Media:     media,
		URL:       fmt.Sprintf("https://vk.com/wall%d_%d", item.OwnerID, item.ID),
		CreatedAt: time.Unix(item.Date, 0).UTC(),
	}
	post.Fingerprint = content.Fingerprint(post.Text, post.MediaRefs())
	return post, true
}
