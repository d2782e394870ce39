package content

import "regexp"

var (
	telegramURLPattern = regexp.MustCompile(`^https?://t\.me/[a-zA-Z0-9_]+/?$`)
	vkURLPattern       = regexp.MustCompile(`^https?://vk\.com/(public|club|)[a-zA-Z0-9_]+/?$`)

	telegramUsernamePattern = regexp.MustCompile(`t\.me/([a-zA-Z0-9_]+)`)
	vkIDPattern             = regexp.MustCompile(`vk\.com/(public|club|)([a-zA-Z0-9_]+)`)
)

// ValidateTelegramURL reports whether url points at a Telegram channel/group.
func ValidateTelegramURL(url string) bool {
	return telegramURLPattern.MatchString(url)
}

// ValidateVKURL reports whether url points at a VK community.
func ValidateVKURL(url string) bool {
	return vkURLPattern.MatchString(url)
}

// ExtractTelegramUsername pulls the channel username out of a Telegram URL.
// Returns "" when the URL does not contain one.
func ExtractTelegramUsername(url string) string {
	m := telegramUsernamePattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractVKID pulls the community identifier out of a VK URL.
// Returns "" when the URL does not contain one.
func ExtractVKID(url string) string {
	m := vkIDPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[2]
}
