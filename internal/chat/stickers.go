package chat

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed stickers.yaml
var stickersYAML []byte

// Sticker is a named single-glyph message.
type Sticker struct {
	Name  string `yaml:"name"`
	Glyph string `yaml:"glyph"`
}

// EmojiCategory groups emoji offered by the picker.
type EmojiCategory struct {
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

// Picker holds the sticker and emoji tables. Stickers are sent on their own;
// emoji are inserted into the message being composed.
type Picker struct {
	Stickers []Sticker       `yaml:"stickers"`
	Emoji    []EmojiCategory `yaml:"emoji"`

	byName map[string]Sticker
}

// LoadStickers parses the embedded picker tables.
func LoadStickers() (*Picker, error) {
	return ParsePicker(stickersYAML)
}

// ParsePicker parses picker tables from YAML. Every sticker glyph must be a
// valid sticker and names must be unique.
func ParsePicker(data []byte) (*Picker, error) {
	var p Picker
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("chat: parse stickers: %w", err)
	}
	p.byName = make(map[string]Sticker, len(p.Stickers))
	for _, s := range p.Stickers {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			return nil, fmt.Errorf("chat: sticker %q has no name", s.Glyph)
		}
		if !IsSticker(s.Glyph) {
			return nil, fmt.Errorf("chat: sticker %q glyph %q is not a single emoji", s.Name, s.Glyph)
		}
		if _, dup := p.byName[name]; dup {
			return nil, fmt.Errorf("chat: duplicate sticker %q", name)
		}
		p.byName[name] = s
	}
	return &p, nil
}

// Sticker looks a sticker up by case-insensitive name.
func (p *Picker) Sticker(name string) (Sticker, bool) {
	s, ok := p.byName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Names returns the sticker names in sorted order.
func (p *Picker) Names() []string {
	names := make([]string, 0, len(p.byName))
	for name := range p.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Categories returns the emoji category names in table order.
func (p *Picker) Categories() []string {
	names := make([]string, 0, len(p.Emoji))
	for _, c := range p.Emoji {
		names = append(names, c.Name)
	}
	return names
}

// Category looks an emoji category up by case-insensitive name.
func (p *Picker) Category(name string) (EmojiCategory, bool) {
	name = strings.TrimSpace(name)
	for _, c := range p.Emoji {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return EmojiCategory{}, false
}

// Item returns the n-th emoji of the category, counting from 1.
func (c EmojiCategory) Item(n int) (string, bool) {
	if n < 1 || n > len(c.Items) {
		return "", false
	}
	return c.Items[n-1], true
}
