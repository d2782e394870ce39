package sources

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vslobodin/channel-mirror-bot/internal/content"
	"github.com/vslobodin/channel-mirror-bot/internal/models"
	"github.com/vslobodin/channel-mirror-bot/internal/ratelimit"
)

// Options carries the per-source limiter settings and platform credentials
// the factory needs.
type Options struct {
	RequestsPerMinute int
	MaxRetries        int
	BaseDelay         time.Duration

	VKAccessToken string
	VKAPIVersion  string
}

// New validates the source URL for the platform and returns a ready Adapter.
// Unsupported platforms and invalid URLs are errors; the caller decides
// whether to drop the source or abort.
func New(platform models.Platform, sourceURL string, opts Options) (*Adapter, error) {
	var src Source

	switch platform {
	case models.PlatformTelegram:
		if !content.ValidateTelegramURL(sourceURL) {
			return nil, fmt.Errorf("invalid telegram URL: %s", sourceURL)
		}
		s, err := NewTelegramSource(sourceURL)
		if err != nil {
			return nil, err
		}
		src = s

	case models.PlatformVK:
		if !content.ValidateVKURL(sourceURL) {
			return nil, fmt.Errorf("invalid vk URL: %s", sourceURL)
		}
		s, err := NewVKSource(sourceURL, opts.VKAccessToken, opts.VKAPIVersion)
		if err != nil {
			return nil, err
		}
		src = s

	default:
		return nil, fmt.Errorf("unsupported platform: %s (available: %s, %s)",
			platform, models.PlatformTelegram, models.PlatformVK)
	}

	limiter := ratelimit.NewAdaptive(opts.RequestsPerMinute, time.Minute, opts.MaxRetries, opts.BaseDelay)
	logrus.Debugf("%s source created for %s", platform, sourceURL)
	return NewAdapter(src, limiter), nil
}
