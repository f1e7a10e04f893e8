package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Channel is a video channel registry entry. ID may be a channel URL, an
// @handle, or a raw channel ID.
type Channel struct {
	Name   string `yaml:"name"`
	ID     string `yaml:"id"`
	Active *bool  `yaml:"active"`
}

// IsActive reports whether the channel should be polled. Missing flags default to true.
func (c Channel) IsActive() bool { return c.Active == nil || *c.Active }

// Feed is an RSS or Atom feed registry entry.
type Feed struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Active *bool  `yaml:"active"`
}

// IsActive reports whether the feed should be polled. Missing flags default to true.
func (f Feed) IsActive() bool { return f.Active == nil || *f.Active }

// RoundupSchedule declares a recurring pillar roundup.
type RoundupSchedule struct {
	Pillar       string   `yaml:"pillar"`
	Days         []string `yaml:"days"`
	LookbackDays int      `yaml:"lookback_days"`
}

// RunsOn reports whether the schedule includes the given weekday name.
func (r RoundupSchedule) RunsOn(weekday string) bool {
	weekday = strings.ToLower(strings.TrimSpace(weekday))
	for _, day := range r.Days {
		if strings.ToLower(strings.TrimSpace(day)) == weekday {
			return true
		}
	}
	return false
}

// Sources is the ingestion registry read from sources.yaml.
type Sources struct {
	YouTube  []Channel         `yaml:"youtube"`
	RSS      []Feed            `yaml:"rss"`
	Roundups []RoundupSchedule `yaml:"roundups"`
}

// ActiveChannels returns channels whose active flag is unset or true.
func (s *Sources) ActiveChannels() []Channel {
	if s == nil {
		return nil
	}
	out := make([]Channel, 0, len(s.YouTube))
	for _, ch := range s.YouTube {
		if ch.IsActive() && strings.TrimSpace(ch.ID) != "" {
			out = append(out, ch)
		}
	}
	return out
}

// ActiveFeeds returns feeds whose active flag is unset or true.
func (s *Sources) ActiveFeeds() []Feed {
	if s == nil {
		return nil
	}
	out := make([]Feed, 0, len(s.RSS))
	for _, feed := range s.RSS {
		if feed.IsActive() && strings.TrimSpace(feed.URL) != "" {
			out = append(out, feed)
		}
	}
	return out
}

// LoadSources reads the source registry. A missing file yields an empty
// registry and ok=false.
func LoadSources(path string) (*Sources, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Sources{}, false, nil
		}
		return nil, false, fmt.Errorf("read sources: %w", err)
	}
	var sources Sources
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, false, fmt.Errorf("parse sources %s: %w", path, err)
	}
	for i := range sources.Roundups {
		if sources.Roundups[i].LookbackDays <= 0 {
			sources.Roundups[i].LookbackDays = 7
		}
	}
	return &sources, true, nil
}

// Pillar describes a content pillar offered to the generator.
type Pillar struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// LoadPillars reads the pillar list. A missing file yields no pillars.
func LoadPillars(path string) ([]Pillar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pillars: %w", err)
	}
	var pillars []Pillar
	if err := yaml.Unmarshal(data, &pillars); err != nil {
		return nil, fmt.Errorf("parse pillars %s: %w", path, err)
	}
	out := pillars[:0]
	for _, p := range pillars {
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		if p.Name != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
