package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// SourceEntry is one monitored channel from the sources file.
type SourceEntry struct {
	Platform string `yaml:"platform"`
	URL      string `yaml:"url"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled treats a missing enabled field as true.
func (s SourceEntry) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type sourcesFile struct {
	Sources []SourceEntry `yaml:"sources"`
}

const exampleSources = `# Channels to mirror. Platform is "telegram" or "vk".
sources:
  - platform: telegram
    url: https://t.me/example_channel
    enabled: false
  - platform: vk
    url: https://vk.com/example_community
    enabled: false
`

// LoadSources reads the YAML source list. A missing file is replaced with a
// commented example so a fresh deployment starts without hand-written config.
func LoadSources(path string) ([]SourceEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logrus.Warnf("sources file %s not found, writing example", path)
		if writeErr := os.WriteFile(path, []byte(exampleSources), 0o644); writeErr != nil {
			return nil, fmt.Errorf("failed to write example sources file: %w", writeErr)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var parsed sourcesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}

	var entries []SourceEntry
	for _, entry := range parsed.Sources {
		if entry.Platform == "" || entry.URL == "" {
			logrus.Warnf("skipping source entry with missing platform or url: %+v", entry)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
