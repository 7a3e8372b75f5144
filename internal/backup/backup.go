// Package backup defines the JSON document used for export, import and the
// legacy links.json / config.json files.
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// CurrentVersion is written into every export.
const CurrentVersion = 1

var ErrMalformed = errors.New("malformed backup document")

type Document struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Links      []Link    `json:"links"`
	Config     Config    `json:"config"`
}

type Link struct {
	ID        FlexID `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Subtitle  string `json:"subtitle,omitempty"`
	IconName  string `json:"iconName,omitempty"`
	IconType  string `json:"iconType,omitempty"`
	Position  *int   `json:"position,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type Config struct {
	Profile  Profile  `json:"profile"`
	Settings Settings `json:"settings"`
	// AdminPasswordHash only appears in legacy config.json files.
	AdminPasswordHash string `json:"adminPasswordHash,omitempty"`
}

type Profile struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	AvatarURL   string `json:"avatarUrl"`
}

type Settings struct {
	BackgroundImageURL string `json:"backgroundImageUrl"`
	PageTitle          string `json:"pageTitle"`
	Theme              string `json:"theme"`
	AccentColor        string `json:"accentColor"`
	ButtonStyle        string `json:"buttonStyle"`
	// ShowFooter is a pointer so a missing key keeps the default.
	ShowFooter *bool `json:"showFooter,omitempty"`
}

// FlexID accepts ids written as JSON strings or numbers.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

// Int64 returns the id when it is a positive integer.
func (id FlexID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Parse reads a full export document.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if doc.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, doc.Version)
	}
	return &doc, nil
}

// ParseLegacyLinks reads links.json, which is either a bare array or an
// object with a "links" array.
func ParseLegacyLinks(data []byte) ([]Link, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var links []Link
		if err := json.Unmarshal(data, &links); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return links, nil
	}
	var wrapped struct {
		Links []Link `json:"links"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return wrapped.Links, nil
}

// ParseLegacyConfig reads config.json.
func ParseLegacyConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &cfg, nil
}

// Encode writes doc as indented JSON.
func Encode(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return append(data, '\n'), nil
}
