// Package v1 holds the wire contract of the render endpoints.
package v1

// RenderRequest is the body of POST /render.
//   - template: template id, resolved locally then on the content host
//   - template_url: absolute URL fetched directly, overrides template
//   - data: free-form template context
//   - width/height: viewport in CSS pixels, 1080x1350 when omitted
//   - filename_prefix: object name prefix, "render" when omitted
type RenderRequest struct {
	Template       string         `json:"template,omitempty"`
	TemplateURL    string         `json:"template_url,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Width          *float64       `json:"width,omitempty"`
	Height         *float64       `json:"height,omitempty"`
	FilenamePrefix string         `json:"filename_prefix,omitempty"`
}

// Response is the envelope every endpoint answers with.
type Response struct {
	OK       bool   `json:"ok"`
	ImageURL string `json:"image_url,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

// Paths.
const (
	PathRender      = "/render"
	PathLeaderboard = "/render/leaderboard"
	PathPersonal    = "/render/personal"
	PathHealth      = "/healthz"
)
