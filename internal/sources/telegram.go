package sources

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/vslobodin/channel-mirror-bot/internal/content"
	"github.com/vslobodin/channel-mirror-bot/internal/models"
)

// TelegramSource reads a public channel through the t.me/s/<username>
// preview page. The preview exposes roughly the last twenty messages with
// text, timestamps and media references, which is all the pipeline needs.
type TelegramSource struct {
	sourceURL string
	username  string
	client    *resty.Client
}

var backgroundImagePattern = regexp.MustCompile(`background-image:\s*url\('([^']+)'\)`)

// NewTelegramSource creates a source for one channel URL.
func NewTelegramSource(sourceURL string) (*TelegramSource, error) {
	username := content.ExtractTelegramUsername(sourceURL)
	if username == "" {
		return nil, fmt.Errorf("cannot extract username from %s", sourceURL)
	}

	return &TelegramSource{
		sourceURL: sourceURL,
		username:  username,
		client:    sharedClient(models.PlatformTelegram),
	}, nil
}

func (t *TelegramSource) Name() string { return string(models.PlatformTelegram) }

func (t *TelegramSource) URL() string { return t.sourceURL }

// Initialize verifies the channel preview is reachable.
func (t *TelegramSource) Initialize(ctx context.Context) error {
	resp, err := t.client.R().SetContext(ctx).Get(t.previewURL())
	if err != nil {
		return fmt.Errorf("telegram preview unreachable for %s: %w", t.username, err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("telegram preview for %s returned status %d", t.username, resp.StatusCode())
	}

	logrus.Infof("telegram source ready: %s", t.username)
	return nil
}

// Fetch returns up to limit posts created at or after since, oldest first.
func (t *TelegramSource) Fetch(ctx context.Context, limit int, since time.Time) ([]models.Post, error) {
	resp, err := t.client.R().SetContext(ctx).Get(t.previewURL())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", t.username, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("telegram preview for %s returned status %d", t.username, resp.StatusCode())
	}

	posts, err := t.parsePreview(resp.Body())
	if err != nil {
		return nil, err
	}

	filtered := posts[:0]
	for _, post := range posts {
		if !since.IsZero() && post.CreatedAt.UTC().Before(since) {
			continue
		}
		filtered = append(filtered, post)
	}

	// The preview lists oldest first; keep the newest limit entries.
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	return filtered, nil
}

func (t *TelegramSource) Close() error { return nil }

func (t *TelegramSource) previewURL() string {
	return "https://t.me/s/" + t.username
}

func (t *TelegramSource) parsePreview(body []byte) ([]models.Post, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse preview page for %s: %w", t.username, err)
	}

	var posts []models.Post
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || !hasClass(n, "tgme_widget_message") {
			return
		}
		if post, ok := t.parseMessage(n); ok {
			posts = append(posts, post)
		}
	})

	return posts, nil
}

// parseMessage builds one Post from a message node. Messages without a post
// id, a timestamp, or any content are skipped.
func (t *TelegramSource) parseMessage(msg *html.Node) (models.Post, bool) {
	dataPost := attrValue(msg, "data-post")
	idx := strings.LastIndex(dataPost, "/")
	if idx < 0 || idx == len(dataPost)-1 {
		return models.Post{}, false
	}
	postID := dataPost[idx+1:]

	var (
		text      string
		createdAt time.Time
		media     []models.Media
	)

	walk(msg, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}

		switch {
		case hasClass(n, "tgme_widget_message_text") && text == "":
			text = content.SanitizeText(nodeText(n))

		case n.Data == "time":
			if dt := attrValue(n, "datetime"); dt != "" && createdAt.IsZero() {
				if parsed, err := time.Parse(time.RFC3339, dt); err == nil {
					createdAt = parsed
				}
			}

		case hasClass(n, "tgme_widget_message_photo_wrap"):
			if m := backgroundImagePattern.FindStringSubmatch(attrValue(n, "style")); m != nil {
				media = append(media, models.Media{Type: models.MediaPhoto, URL: m[1]})
			}

		case n.Data == "video":
			if src := attrValue(n, "src"); src != "" {
				media = append(media, models.Media{Type: models.MediaVideo, URL: src})
			}
		}
	})

	if createdAt.IsZero() {
		return models.Post{}, false
	}
	if text == "" && len(media) == 0 {
		logrus.Debugf("skipping contentless message %s/%s", t.username, postID)
		return models.Post{}, false
	}

	post := models.Post{
		Platform:  models.PlatformTelegram,
		SourceID:  t.username,
		PostID:    postID,
		Text:      text,
		Media:     media,
		URL:       fmt.Sprintf("https://t.me/%s/%s", t.username, postID),
		CreatedAt: createdAt,
	}
	post.Fingerprint = content.Fingerprint(post.Text, post.MediaRefs())
	return post, true
}

// walk visits n and every descendant in document order.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// nodeText flattens the text content of a node, turning <br> into newlines.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}
