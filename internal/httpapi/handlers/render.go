package handlers

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"

	renderv1 "cardrender/internal/contracts/render/v1"
	"cardrender/internal/httpkit"
	"cardrender/internal/pipeline"
	"cardrender/internal/pkg/errors"
	"cardrender/internal/presentation"
)

const (
	KindGeneric     = "generic"
	KindLeaderboard = "leaderboard"
	KindPersonal    = "personal"

	DefaultWidth  = 1080
	DefaultHeight = 1350

	LeaderboardTemplate = "daily_leaderboard_v1"
	LeaderboardHeight   = 1600
	PersonalTemplate    = "personal_progress_v1"

	genericPrefix = "render"
)

// Render handles POST /render.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) error {
	var req renderv1.RenderRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}

	req.Template = strings.TrimSpace(req.Template)
	req.TemplateURL = strings.TrimSpace(req.TemplateURL)
	if req.Template == "" && req.TemplateURL == "" {
		return errors.BadRequest("template", "template is required")
	}

	width, err := dimension("width", req.Width, DefaultWidth)
	if err != nil {
		return err
	}
	height, err := dimension("height", req.Height, DefaultHeight)
	if err != nil {
		return err
	}

	prefix := strings.TrimSpace(req.FilenamePrefix)
	if prefix == "" {
		prefix = genericPrefix
	}

	data := req.Data
	if data == nil {
		data = map[string]any{}
	}

	return h.run(w, r, pipeline.Job{
		Kind:           KindGeneric,
		Template:       req.Template,
		TemplateURL:    req.TemplateURL,
		Data:           data,
		Width:          width,
		Height:         height,
		FilenamePrefix: prefix,
	})
}

// RenderLeaderboard handles POST /render/leaderboard. The whole body is the
// template context; the ranked view is added under "view".
func (h *Handler) RenderLeaderboard(w http.ResponseWriter, r *http.Request) error {
	body, err := h.decodeBody(w, r)
	if err != nil {
		return err
	}

	job, err := legacyJob(body, KindLeaderboard, LeaderboardTemplate, DefaultWidth, LeaderboardHeight)
	if err != nil {
		return err
	}
	job.FilenamePrefix = "daily-" + presentation.LeaderboardName(body)

	job.Data, err = presentation.WithView(body, presentation.LeaderboardView(body))
	if err != nil {
		return errors.Wrap(err, "handlers.leaderboard", "build leaderboard view")
	}
	return h.run(w, r, job)
}

// RenderPersonal handles POST /render/personal.
func (h *Handler) RenderPersonal(w http.ResponseWriter, r *http.Request) error {
	body, err := h.decodeBody(w, r)
	if err != nil {
		return err
	}

	job, err := legacyJob(body, KindPersonal, PersonalTemplate, DefaultWidth, DefaultHeight)
	if err != nil {
		return err
	}
	job.FilenamePrefix = "personal-" + presentation.PersonalName(body)

	job.Data, err = presentation.WithView(body, presentation.PersonalView(body))
	if err != nil {
		return errors.Wrap(err, "handlers.personal", "build personal view")
	}
	return h.run(w, r, job)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, job pipeline.Job) error {
	res, err := h.pipeline.Run(r.Context(), job)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, httpkit.Envelope{OK: true, ImageURL: res.URL})
	return nil
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := httpkit.DecodeJSON(w, r, h.maxBodyBytes, v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.Newf(errors.CodeBadRequest, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return errors.WrapWithCode(err, errors.CodeBadRequest, "handlers.decode", "invalid json body")
	}
	return nil
}

// decodeBody accepts any JSON object; an empty or null body becomes an empty one.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var body map[string]any
	if err := h.decode(w, r, &body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// legacyJob reads the optional template, template_url, width and height
// overrides the legacy endpoints accept at the top level of the body.
func legacyJob(body map[string]any, kind, template string, width, height int) (pipeline.Job, error) {
	job := pipeline.Job{Kind: kind, Template: template}

	if t, ok := body["template"].(string); ok && strings.TrimSpace(t) != "" {
		job.Template = strings.TrimSpace(t)
	}
	if u, ok := body["template_url"].(string); ok {
		job.TemplateURL = strings.TrimSpace(u)
	}

	var err error
	if job.Width, err = dimension("width", number(body["width"]), width); err != nil {
		return job, err
	}
	if job.Height, err = dimension("height", number(body["height"]), height); err != nil {
		return job, err
	}
	return job, nil
}

func number(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return &f
		}
	}
	return nil
}

// dimension applies def for a missing or zero value and rejects anything
// that is not a positive integer.
func dimension(field string, v *float64, def int) (int, error) {
	if v == nil || *v == 0 {
		return def, nil
	}
	f := *v
	if f < 0 || f != math.Trunc(f) || f > 16384 {
		return 0, errors.BadRequest(field, field+" must be a positive integer")
	}
	return int(f), nil
}
