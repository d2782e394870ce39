package models

import "time"

// Platform identifies the source system a post was discovered on.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformVK       Platform = "vk"
)

// MediaType tags an attachment.
type MediaType string

const (
	MediaPhoto    MediaType = "photo"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
	MediaAudio    MediaType = "audio"
)

// Media is one attachment of a post. Exactly one of URL or FilePath is set:
// URL for remote references, FilePath for media already downloaded locally.
type Media struct {
	Type     MediaType `json:"type"`
	URL      string    `json:"url,omitempty"`
	FilePath string    `json:"file_path,omitempty"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	Duration int       `json:"duration,omitempty"`
}

// Ref returns the reference string used for fingerprinting and publishing.
func (m Media) Ref() string {
	if m.FilePath != "" {
		return m.FilePath
	}
	return m.URL
}

// Post is one unit of content discovered on a source. Sources construct it
// fully, fingerprint included; the pipeline never mutates it afterwards.
type Post struct {
	Platform    Platform  `json:"platform"`
	SourceID    string    `json:"source_id"` // channel/group within the platform
	PostID      string    `json:"post_id"`   // item within the source
	Text        string    `json:"text,omitempty"`
	Media       []Media   `json:"media,omitempty"`
	URL         string    `json:"url"` // canonical link, used in the footer
	Author      string    `json:"author,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
}

// MediaRefs collects the reference strings of all attachments, in order.
func (p Post) MediaRefs() []string {
	if len(p.Media) == 0 {
		return nil
	}
	refs := make([]string, 0, len(p.Media))
	for _, m := range p.Media {
		if r := m.Ref(); r != "" {
			refs = append(refs, r)
		}
	}
	return refs
}

// SeenRecord is the persisted processing status of one post. A record is
// pending (not published, no error), published (terminal success) or failed
// (error message set, terminal failure); terminal states never transition.
type SeenRecord struct {
	ID              int64      `json:"id"`
	Fingerprint     string     `json:"fingerprint"`
	Platform        Platform   `json:"platform"`
	SourceID        string     `json:"source_id"`
	PostID          string     `json:"post_id"`
	URL             string     `json:"url"`
	CreatedAt       time.Time  `json:"created_at"`
	DiscoveredAt    time.Time  `json:"discovered_at"`
	Published       bool       `json:"published"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	TargetMessageID string     `json:"target_message_id,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}
