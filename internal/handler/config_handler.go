package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/service"
)

type ConfigHandler struct {
	service service.ConfigService
}

func NewConfigHandler(service service.ConfigService) *ConfigHandler {
	return &ConfigHandler{service: service}
}

type profileRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	AvatarURL   string `json:"avatarUrl"`
}

// settingsRequest uses a pointer so an omitted showFooter keeps the default.
type settingsRequest struct {
	BackgroundImageURL string `json:"backgroundImageUrl"`
	PageTitle          string `json:"pageTitle"`
	Theme              string `json:"theme"`
	AccentColor        string `json:"accentColor"`
	ButtonStyle        string `json:"buttonStyle"`
	ShowFooter         *bool  `json:"showFooter"`
}

type profileResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	AvatarURL   string `json:"avatarUrl"`
}

type settingsResponse struct {
	BackgroundImageURL string `json:"backgroundImageUrl"`
	PageTitle          string `json:"pageTitle"`
	Theme              string `json:"theme"`
	AccentColor        string `json:"accentColor"`
	ButtonStyle        string `json:"buttonStyle"`
	ShowFooter         bool   `json:"showFooter"`
}

type configResponse struct {
	Profile  profileResponse  `json:"profile"`
	Settings settingsResponse `json:"settings"`
}

func (h *ConfigHandler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/config", h.Get)
}

func (h *ConfigHandler) RegisterProtectedRoutes(g *echo.Group) {
	g.PUT("/config/profile", h.UpdateProfile)
	g.PUT("/config/settings", h.UpdateSettings)
}

// Get returns the public page configuration.
// @Summary Get config
// @Description Get profile and page settings; credentials are never included
// @Tags config
// @Produce json
// @Success 200 {object} configResponse
// @Failure 500 {object} errorResponse
// @Router /config [get]
func (h *ConfigHandler) Get(c echo.Context) error {
	cfg, err := h.service.Get(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, configResponse{
		Profile:  toProfileResponse(cfg.Profile),
		Settings: toSettingsResponse(cfg.Settings),
	})
}

// UpdateProfile saves name, description and avatar.
// @Summary Update profile
// @Tags config
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body profileRequest true "Profile"
// @Success 200 {object} profileResponse
// @Failure 400 {object} errorResponse
// @Router /config/profile [put]
func (h *ConfigHandler) UpdateProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	profile, err := h.service.UpdateProfile(c.Request().Context(), service.ProfileInput{
		Name:        req.Name,
		Description: req.Description,
		Avatar:      req.Avatar,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toProfileResponse(profile))
}

// UpdateSettings saves the page settings.
// @Summary Update page settings
// @Tags config
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param settings body settingsRequest true "Page settings"
// @Success 200 {object} settingsResponse
// @Failure 400 {object} errorResponse
// @Router /config/settings [put]
func (h *ConfigHandler) UpdateSettings(c echo.Context) error {
	var req settingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	showFooter := true
	if req.ShowFooter != nil {
		showFooter = *req.ShowFooter
	}
	settings, err := h.service.UpdateSettings(c.Request().Context(), model.PageSettings{
		BackgroundImageURL: req.BackgroundImageURL,
		PageTitle:          req.PageTitle,
		Theme:              req.Theme,
		AccentColor:        req.AccentColor,
		ButtonStyle:        req.ButtonStyle,
		ShowFooter:         showFooter,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toSettingsResponse(settings))
}

func toProfileResponse(p model.Profile) profileResponse {
	return profileResponse{
		Name:        p.Name,
		Description: p.Description,
		Avatar:      p.Avatar,
		AvatarURL:   p.AvatarURL,
	}
}

func toSettingsResponse(s model.PageSettings) settingsResponse {
	return settingsResponse{
		BackgroundImageURL: s.BackgroundImageURL,
		PageTitle:          s.PageTitle,
		Theme:              s.Theme,
		AccentColor:        s.AccentColor,
		ButtonStyle:        s.ButtonStyle,
		ShowFooter:         s.ShowFooter,
	}
}
