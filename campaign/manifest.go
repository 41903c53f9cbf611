package campaign

import (
	"net/http"

	"github.com/labstack/echo"
)

// ManifestIcon is an icon of the web app manifest.
type ManifestIcon struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type"`
}

// WebManifest is the manifest letting the field app be installed on a
// phone home screen.
type WebManifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	StartURL        string         `json:"start_url"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color"`
	ThemeColor      string         `json:"theme_color"`
	Icons           []ManifestIcon `json:"icons"`
}

// Manifest returns the manifest served to the field app, using the
// candidate logo as icon.
func Manifest(logo string) WebManifest {
	if logo == "" {
		logo = "/jannetaa.jpg"
	}
	return WebManifest{
		Name:            "Election Manager",
		ShortName:       "ElectionApp",
		StartURL:        "/",
		Display:         "standalone",
		BackgroundColor: "#ffffff",
		ThemeColor:      "#f97316",
		Icons: []ManifestIcon{
			{Src: logo, Sizes: "192x192", Type: "image/jpeg"},
			{Src: logo, Sizes: "512x512", Type: "image/jpeg"},
		},
	}
}

// Manifest serves the web app manifest.
func (h *Handler) Manifest(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/manifest+json")
	return c.JSON(http.StatusOK, Manifest(h.service.Candidate.Get().LogoImageCircle))
}
