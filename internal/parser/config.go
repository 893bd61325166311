package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/headless/internal/content"
)

// Config is the content of a config document.
type Config struct {
	Displays  []content.Display
	Redirects []content.Redirect
	Views     []*content.Object
}

type configDoc struct {
	Displays  []displayDoc  `yaml:"displays"`
	Redirects []redirectDoc `yaml:"redirects"`
	Views     []viewDoc     `yaml:"views"`
}

type displayDoc struct {
	Type       string                       `yaml:"type"`
	Bundle     string                       `yaml:"bundle"`
	ViewMode   string                       `yaml:"view_mode"`
	Hidden     []string                     `yaml:"hidden"`
	Components map[string]content.Component `yaml:"components"`
}

type redirectDoc struct {
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	Status   int    `yaml:"status"`
	Langcode string `yaml:"langcode"`
}

type viewDoc struct {
	ID        string         `yaml:"id"`
	UUID      string         `yaml:"uuid"`
	Label     string         `yaml:"label"`
	Path      string         `yaml:"path"`
	Langcode  string         `yaml:"langcode"`
	Published *bool          `yaml:"published"`
	Displays  map[string]any `yaml:"displays"`
	CacheTags []string       `yaml:"cache_tags"`
}

// ParseConfig parses a config document. Unlike content documents, invalid
// YAML is an error.
func ParseConfig(data []byte, defaultLang string) (*Config, error) {
	var doc configDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parser: config: %w", err)
	}
	cfg := &Config{}

	for _, d := range doc.Displays {
		if d.Type == "" {
			return nil, fmt.Errorf("parser: config: display without type")
		}
		display := content.EmptyDisplay(d.Type, d.Bundle, d.ViewMode)
		if display.Variant == "" {
			display.Variant = d.Type
		}
		if display.ViewMode == "" {
			display.ViewMode = content.DefaultViewMode
		}
		if d.Hidden != nil {
			display.Hidden = d.Hidden
		}
		for name, c := range d.Components {
			display.Components[name] = c
		}
		cfg.Displays = append(cfg.Displays, *display)
	}

	for _, r := range doc.Redirects {
		source := strings.Trim(r.Source, "/")
		if source == "" || r.Target == "" {
			return nil, fmt.Errorf("parser: config: redirect needs source and target")
		}
		cfg.Redirects = append(cfg.Redirects, content.Redirect{
			Source:   source,
			Target:   r.Target,
			Status:   r.Status,
			Langcode: r.Langcode,
		})
	}

	for _, v := range doc.Views {
		if v.ID == "" {
			return nil, fmt.Errorf("parser: config: view without id")
		}
		obj := &content.Object{
			UUID:      v.UUID,
			Category:  content.CollectionCategory,
			Variant:   content.CollectionCategory,
			ID:        v.ID,
			Langcode:  v.Langcode,
			Config:    true,
			Published: v.Published == nil || *v.Published,
			Tags:      v.CacheTags,
			Settings: map[string]any{
				"label":    v.Label,
				"displays": v.Displays,
			},
		}
		if obj.UUID == "" {
			obj.UUID = ObjectUUID(obj.Category, obj.ID)
		}
		if obj.Langcode == "" {
			obj.Langcode = defaultLang
		}
		if v.Path != "" {
			obj.Alias = "/" + strings.Trim(v.Path, "/")
		}
		cfg.Views = append(cfg.Views, obj)
	}
	return cfg, nil
}
