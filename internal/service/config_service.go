package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/HugPhiluu/PhilCard/internal/logger"
	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/repository"
)

// Config setting keys
const (
	keyProfileName        = "profile.name"
	keyProfileDescription = "profile.description"
	keyProfileAvatar      = "profile.avatar"
	keyProfileAvatarURL   = "profile.avatar_url"

	keyPageBackgroundURL = "page.background_image_url"
	keyPageTitle         = "page.title"
	keyPageTheme         = "page.theme"
	keyPageAccentColor   = "page.accent_color"
	keyPageButtonStyle   = "page.button_style"
	keyPageShowFooter    = "page.show_footer"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 1000
	maxPageTitleLength   = 100
	maxURLLength         = 2048

	// UploadURLPrefix is where uploaded files are served from.
	UploadURLPrefix = "/uploads/"
)

var accentColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ProfileInput is the editable part of the profile.
type ProfileInput struct {
	Name        string
	Description string
	Avatar      string
	AvatarURL   string
}

// ConfigService reads and writes the singleton site configuration.
type ConfigService interface {
	Get(ctx context.Context) (model.SiteConfig, error)
	UpdateProfile(ctx context.Context, in ProfileInput) (model.Profile, error)
	UpdateSettings(ctx context.Context, in model.PageSettings) (model.PageSettings, error)
	// SetAvatar points the profile at an uploaded file.
	SetAvatar(ctx context.Context, filename string) (model.Profile, error)
	// SetBackground points the page background at an uploaded file.
	SetBackground(ctx context.Context, filename string) (model.PageSettings, error)
	// ClearAvatar removes the avatar from the profile.
	ClearAvatar(ctx context.Context) (model.Profile, error)
	// Values validates cfg and returns the setting rows that store it,
	// without writing anything.
	Values(cfg model.SiteConfig) (map[string]string, error)
}

type configService struct {
	repo      repository.SettingsRepository
	uploads   *FileStore
	sanitizer *bluemonday.Policy
}

func NewConfigService(repo repository.SettingsRepository, uploads *FileStore) ConfigService {
	return &configService{
		repo:      repo,
		uploads:   uploads,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *configService) Get(ctx context.Context) (model.SiteConfig, error) {
	values, err := s.load(ctx)
	if err != nil {
		return model.SiteConfig{}, err
	}
	return configFromValues(values), nil
}

func (s *configService) UpdateProfile(ctx context.Context, in ProfileInput) (model.Profile, error) {
	return s.saveProfile(ctx, s.sanitizeProfile(in))
}

// saveProfile stores a profile whose text is already sanitized.
func (s *configService) saveProfile(ctx context.Context, profile model.Profile) (model.Profile, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	profile, err = checkProfile(profile)
	if err != nil {
		return model.Profile{}, err
	}
	if profile.Avatar != "" && profile.Avatar != current.Profile.Avatar {
		if _, err := s.uploads.Stat(profile.Avatar); err != nil {
			return model.Profile{}, invalid("avatar", "unknown upload %q", profile.Avatar)
		}
	}
	if err := s.repo.SetMany(ctx, profileValues(profile)); err != nil {
		return model.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	if current.Profile.Avatar != "" && current.Profile.Avatar != profile.Avatar {
		s.removeUpload(current.Profile.Avatar)
	}
	return profile, nil
}

func (s *configService) UpdateSettings(ctx context.Context, in model.PageSettings) (model.PageSettings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return model.PageSettings{}, err
	}
	settings, err := normalizeSettings(in)
	if err != nil {
		return model.PageSettings{}, err
	}
	if err := s.repo.SetMany(ctx, settingsValues(settings)); err != nil {
		return model.PageSettings{}, fmt.Errorf("save settings: %w", err)
	}
	if old := uploadName(current.Settings.BackgroundImageURL); old != "" && old != uploadName(settings.BackgroundImageURL) {
		s.removeUpload(old)
	}
	return settings, nil
}

func (s *configService) SetAvatar(ctx context.Context, filename string) (model.Profile, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	profile := current.Profile
	profile.Avatar = filename
	profile.AvatarURL = ""
	return s.saveProfile(ctx, profile)
}

func (s *configService) ClearAvatar(ctx context.Context) (model.Profile, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	profile := current.Profile
	profile.Avatar = ""
	profile.AvatarURL = ""
	return s.saveProfile(ctx, profile)
}

func (s *configService) SetBackground(ctx context.Context, filename string) (model.PageSettings, error) {
	if !isSafeFilename(filename) {
		return model.PageSettings{}, invalid("background", "invalid file name")
	}
	current, err := s.Get(ctx)
	if err != nil {
		return model.PageSettings{}, err
	}
	settings := current.Settings
	settings.BackgroundImageURL = UploadURLPrefix + filename
	return s.UpdateSettings(ctx, settings)
}

func (s *configService) Values(cfg model.SiteConfig) (map[string]string, error) {
	profile, err := checkProfile(s.sanitizeProfile(ProfileInput{
		Name:        cfg.Profile.Name,
		Description: cfg.Profile.Description,
		Avatar:      cfg.Profile.Avatar,
		AvatarURL:   cfg.Profile.AvatarURL,
	}))
	if err != nil {
		return nil, err
	}
	settings, err := normalizeSettings(cfg.Settings)
	if err != nil {
		return nil, err
	}
	values := profileValues(profile)
	for k, v := range settingsValues(settings) {
		values[k] = v
	}
	return values, nil
}

func (s *configService) load(ctx context.Context) (map[string]string, error) {
	values := make(map[string]string)
	for _, prefix := range []string{"profile.", "page."} {
		settings, err := s.repo.GetByPrefix(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		for _, setting := range settings {
			values[setting.Key] = setting.Value
		}
	}
	return values, nil
}

func (s *configService) sanitizeProfile(in ProfileInput) model.Profile {
	return model.Profile{
		Name:        in.Name,
		Description: s.sanitizeText(in.Description),
		Avatar:      in.Avatar,
		AvatarURL:   in.AvatarURL,
	}
}

// checkProfile validates a profile and derives the avatar URL. The
// description is taken as is.
func checkProfile(profile model.Profile) (model.Profile, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Avatar = strings.TrimSpace(profile.Avatar)
	profile.AvatarURL = strings.TrimSpace(profile.AvatarURL)
	if len([]rune(profile.Name)) > maxNameLength {
		return model.Profile{}, invalid("name", "must be at most %d characters", maxNameLength)
	}
	if len([]rune(profile.Description)) > maxDescriptionLength {
		return model.Profile{}, invalid("description", "must be at most %d characters", maxDescriptionLength)
	}
	if profile.Avatar == "" {
		// an /uploads/ URL without a file name field still names a managed file
		if name := uploadName(profile.AvatarURL); name != "" {
			profile.Avatar = name
		}
	}
	if profile.Avatar != "" {
		if !isSafeFilename(profile.Avatar) {
			return model.Profile{}, invalid("avatar", "invalid file name")
		}
		profile.AvatarURL = UploadURLPrefix + profile.Avatar
		return profile, nil
	}
	if profile.AvatarURL != "" && !isImageURL(profile.AvatarURL) {
		return model.Profile{}, invalid("avatarUrl", "must be an http(s) URL")
	}
	return profile, nil
}

// sanitizeText strips every tag and leaves plain text; the page renders it as
// text, so entities are decoded again.
func (s *configService) sanitizeText(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(value)))
}

func (s *configService) removeUpload(name string) {
	if err := s.uploads.Remove(name); err != nil && !errors.Is(err, ErrNotFound) {
		logger.Warn("remove replaced upload", "module", "service", "action", "delete", "resource", "upload", "result", "failed", "file", name, "error", err)
		return
	}
	logger.Debug("replaced upload removed", "module", "service", "action", "delete", "resource", "upload", "result", "ok", "file", name)
}

func normalizeSettings(in model.PageSettings) (model.PageSettings, error) {
	out := model.PageSettings{
		BackgroundImageURL: strings.TrimSpace(in.BackgroundImageURL),
		PageTitle:          strings.TrimSpace(in.PageTitle),
		Theme:              strings.ToLower(strings.TrimSpace(in.Theme)),
		AccentColor:        strings.TrimSpace(in.AccentColor),
		ButtonStyle:        strings.ToLower(strings.TrimSpace(in.ButtonStyle)),
		ShowFooter:         in.ShowFooter,
	}
	if out.BackgroundImageURL != "" {
		if name := uploadName(out.BackgroundImageURL); name == "" && !isImageURL(out.BackgroundImageURL) {
			return model.PageSettings{}, invalid("backgroundImageUrl", "must be an upload or http(s) URL")
		}
	}
	if len([]rune(out.PageTitle)) > maxPageTitleLength {
		return model.PageSettings{}, invalid("pageTitle", "must be at most %d characters", maxPageTitleLength)
	}
	switch out.Theme {
	case "":
		out.Theme = model.ThemeAuto
	case model.ThemeAuto, model.ThemeLight, model.ThemeDark:
	default:
		return model.PageSettings{}, invalid("theme", "must be auto, light or dark")
	}
	switch out.ButtonStyle {
	case "":
		out.ButtonStyle = model.ButtonRounded
	case model.ButtonRounded, model.ButtonPill, model.ButtonSquare:
	default:
		return model.PageSettings{}, invalid("buttonStyle", "must be rounded, pill or square")
	}
	if out.AccentColor != "" && !accentColorPattern.MatchString(out.AccentColor) {
		return model.PageSettings{}, invalid("accentColor", "must look like #rgb or #rrggbb")
	}
	return out, nil
}

func configFromValues(values map[string]string) model.SiteConfig {
	cfg := model.SiteConfig{
		Profile: model.Profile{
			Name:        values[keyProfileName],
			Description: values[keyProfileDescription],
			Avatar:      values[keyProfileAvatar],
			AvatarURL:   values[keyProfileAvatarURL],
		},
		Settings: model.PageSettings{
			BackgroundImageURL: values[keyPageBackgroundURL],
			PageTitle:          values[keyPageTitle],
			Theme:              values[keyPageTheme],
			AccentColor:        values[keyPageAccentColor],
			ButtonStyle:        values[keyPageButtonStyle],
			ShowFooter:         true,
		},
	}
	if cfg.Profile.Avatar != "" {
		cfg.Profile.AvatarURL = UploadURLPrefix + cfg.Profile.Avatar
	}
	if cfg.Settings.Theme == "" {
		cfg.Settings.Theme = model.ThemeAuto
	}
	if cfg.Settings.ButtonStyle == "" {
		cfg.Settings.ButtonStyle = model.ButtonRounded
	}
	if v, ok := values[keyPageShowFooter]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Settings.ShowFooter = b
		}
	}
	return cfg
}

func profileValues(p model.Profile) map[string]string {
	return map[string]string{
		keyProfileName:        p.Name,
		keyProfileDescription: p.Description,
		keyProfileAvatar:      p.Avatar,
		keyProfileAvatarURL:   p.AvatarURL,
	}
}

func settingsValues(p model.PageSettings) map[string]string {
	return map[string]string{
		keyPageBackgroundURL: p.BackgroundImageURL,
		keyPageTitle:         p.PageTitle,
		keyPageTheme:         p.Theme,
		keyPageAccentColor:   p.AccentColor,
		keyPageButtonStyle:   p.ButtonStyle,
		keyPageShowFooter:    strconv.FormatBool(p.ShowFooter),
	}
}

// uploadName returns the file name of a /uploads/ URL, or "".
func uploadName(rawURL string) string {
	if !strings.HasPrefix(rawURL, UploadURLPrefix) {
		return ""
	}
	name := strings.TrimPrefix(rawURL, UploadURLPrefix)
	if !isSafeFilename(name) {
		return ""
	}
	return name
}

func isImageURL(rawURL string) bool {
	if len(rawURL) > maxURLLength {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
