package model

import "time"

// Icon types a link can carry.
const (
	IconTypeNone    = "none"
	IconTypeFavicon = "favicon"
	IconTypeEmoji   = "emoji"
	IconTypeBuiltin = "builtin"
	IconTypeCustom  = "custom"
)

// ValidIconType reports whether t is a known icon type.
func ValidIconType(t string) bool {
	switch t {
	case IconTypeNone, IconTypeFavicon, IconTypeEmoji, IconTypeBuiltin, IconTypeCustom:
		return true
	}
	return false
}

type Link struct {
	ID            int64
	Title         string
	URL           string
	Subtitle      string
	IconName      string
	IconType      string
	Position      int
	IconUpdatedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
