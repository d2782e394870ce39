package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTelegramURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{
			name:     "Valid channel URL",
			url:      "https://t.me/golang_news",
			expected: true,
		},
		{
			name:     "Valid with trailing slash",
			url:      "https://t.me/golang_news/",
			expected: true,
		},
		{
			name:     "Plain http",
			url:      "http://t.me/channel",
			expected: true,
		},
		{
			name:     "Message link is not a channel",
			url:      "https://t.me/golang_news/42",
			expected: false,
		},
		{
			name:     "Wrong host",
			url:      "https://telegram.me/channel",
			expected: false,
		},
		{
			name:     "Empty",
			url:      "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateTelegramURL(tt.url))
		})
	}
}

func TestValidateVKURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{
			name:     "Named community",
			url:      "https://vk.com/somegroup",
			expected: true,
		},
		{
			name:     "Public prefix",
			url:      "https://vk.com/public12345",
			expected: true,
		},
		{
			name:     "Club prefix",
			url:      "https://vk.com/club12345",
			expected: true,
		},
		{
			name:     "Wrong host",
			url:      "https://vkontakte.ru/somegroup",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateVKURL(tt.url))
		})
	}
}

func TestExtractTelegramUsername(t *testing.T) {
	assert.Equal(t, "golang_news", ExtractTelegramUsername("https://t.me/golang_news"))
	assert.Equal(t, "", ExtractTelegramUsername("https://example.com/nothing"))
}

func TestExtractVKID(t *testing.T) {
	assert.Equal(t, "somegroup", ExtractVKID("https://vk.com/somegroup"))
	assert.Equal(t, "12345", ExtractVKID("https://vk.com/club12345"))
	assert.Equal(t, "", ExtractVKID("https://example.com/nothing"))
}
