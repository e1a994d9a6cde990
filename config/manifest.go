package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voicecue/interpret"
)

// Manifest is the on-disk form of the result-id tables:
//
//	sounds:
//	  "0": assets/door.wav
//	animations:
//	  "0": { name: door, image: assets/door.png, fade_out: 400ms, fade_in: 600ms }
//
// Relative paths are resolved against the manifest's directory.
type Manifest struct {
	Sounds     map[string]string         `yaml:"sounds"`
	Animations map[string]AnimationEntry `yaml:"animations"`
}

type AnimationEntry struct {
	Name    string        `yaml:"name"`
	Image   string        `yaml:"image"`
	FadeOut time.Duration `yaml:"fade_out"`
	FadeIn  time.Duration `yaml:"fade_in"`
}

func LoadManifest(path string) (*interpret.Resources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m.Resources(filepath.Dir(path)), nil
}

func (m *Manifest) Validate() error {
	if len(m.Sounds) == 0 && len(m.Animations) == 0 {
		return fmt.Errorf("no sounds or animations defined")
	}
	for id, p := range m.Sounds {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("sounds: empty result id")
		}
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("sounds[%s]: path cannot be empty", id)
		}
	}
	for id, a := range m.Animations {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("animations: empty result id")
		}
		if strings.TrimSpace(a.Image) == "" {
			return fmt.Errorf("animations[%s]: image cannot be empty", id)
		}
		if a.FadeOut < 0 || a.FadeIn < 0 {
			return fmt.Errorf("animations[%s]: fades cannot be negative", id)
		}
	}
	return nil
}

// Resources builds the lookup tables, resolving relative paths against base.
func (m *Manifest) Resources(base string) *interpret.Resources {
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	stem := func(p string) string {
		return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	}

	sounds := make(map[interpret.ResultID]interpret.Sound, len(m.Sounds))
	for id, p := range m.Sounds {
		sounds[interpret.ResultID(id)] = interpret.Sound{Name: stem(p), Path: resolve(p)}
	}
	animations := make(map[interpret.ResultID]interpret.Animation, len(m.Animations))
	for id, a := range m.Animations {
		name := a.Name
		if name == "" {
			name = stem(a.Image)
		}
		animations[interpret.ResultID(id)] = interpret.Animation{
			Name:    name,
			Image:   resolve(a.Image),
			FadeOut: a.FadeOut,
			FadeIn:  a.FadeIn,
		}
	}
	return interpret.NewResources(sounds, animations)
}
