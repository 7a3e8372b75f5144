package model

// Page themes.
const (
	ThemeAuto  = "auto"
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Button styles.
const (
	ButtonRounded = "rounded"
	ButtonPill    = "pill"
	ButtonSquare  = "square"
)

// Profile is the public identity shown at the top of the page.
type Profile struct {
	Name        string
	Description string
	// Avatar is the file name of an uploaded avatar; empty when AvatarURL
	// points somewhere external.
	Avatar    string
	AvatarURL string
}

// PageSettings control how the public page renders.
type PageSettings struct {
	BackgroundImageURL string
	PageTitle          string
	Theme              string
	AccentColor        string
	ButtonStyle        string
	ShowFooter         bool
}

// SiteConfig is the singleton configuration document.
type SiteConfig struct {
	Profile  Profile
	Settings PageSettings
}
