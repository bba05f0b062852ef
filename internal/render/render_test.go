package render

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardrender/internal/pkg/errors"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestLiteralRoundTrip(t *testing.T) {
	src := "<html><body><h1>Weekly card</h1>\n<p>no placeholders here</p></body></html>\n"
	r := New(nil)

	for _, name := range []string{"card.hbs", "card.html", "card.gohtml"} {
		out, err := r.Render(name, src, map[string]any{"ignored": true})
		require.NoError(t, err, name)
		assert.Equal(t, src, out, name)
	}
}

func TestHandlebarsHelpers(t *testing.T) {
	data := decode(t, `{
		"player": {"name": "Anh A", "stats": {"start_weight": 70, "current_weight": 67.25, "delta_weight": -0.3}},
		"tags": ["early", "streak"],
		"nickname": ""
	}`)

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"weight", `{{formatWeight player.stats.start_weight}}/{{formatWeight player.stats.current_weight}}`, "70/67.3"},
		{"missing weight", `{{formatWeight player.stats.goal}}`, "--"},
		{"delta", `{{formatDelta player.stats.delta_weight}}`, "-300"},
		{"gt subexpression", `{{#if (gt player.stats.start_weight 69)}}heavy{{else}}light{{/if}}`, "heavy"},
		{"lte", `{{#if (lte player.stats.current_weight 67.25)}}y{{/if}}`, "y"},
		{"eq string", `{{#if (eq player.name "Anh A")}}me{{/if}}`, "me"},
		{"neq", `{{#if (neq player.name "B")}}other{{/if}}`, "other"},
		{"and or not", `{{#if (and (not nickname) (or nickname player.name))}}ok{{/if}}`, "ok"},
		{"add sub", `{{add 1 2}} {{sub player.stats.start_weight 3}}`, "3 67"},
		{"default", `{{default nickname player.name}}`, "Anh A"},
		{"includes", `{{#if (includes tags "streak")}}🔥{{/if}}`, "🔥"},
		{"escaping", `{{player.name}} & {{default missing "<b>"}}`, "Anh A & &lt;b&gt;"},
	}

	r := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render("card.hbs", tt.src, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestGoTemplateHelpers(t *testing.T) {
	data := decode(t, `{"weight": 70, "delta": -0.5, "days": [1, 2, 3], "name": "Bao"}`)

	src := `{{formatWeight .weight}} {{formatDelta .delta}}{{if eq .weight 70}} even{{end}}` +
		`{{if includes .days 2}} has2{{end}} {{default .missing .name}}`

	out, err := New(nil).Render("card.gohtml", src, data)
	require.NoError(t, err)
	assert.Equal(t, "70 -500 even has2 Bao", out)
}

func TestCompileErrors(t *testing.T) {
	r := New(nil)

	tests := []struct {
		name string
		file string
		src  string
	}{
		{"unclosed handlebars block", "card.hbs", "{{#if ready}}never closed"},
		{"unknown handlebars helper call", "card.hbs", "{{#each}}{{/if}}"},
		{"go template syntax", "card.tmpl", "{{if .x}}"},
		{"go template unknown function", "card.tmpl", "{{nope .x}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(tt.file, tt.src, map[string]any{})
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeTemplateCompile), "got %v", err)
			assert.Equal(t, tt.file, errors.GetFields(err)["template"])
		})
	}
}

func TestInjectedHelpers(t *testing.T) {
	r := New(map[string]any{"shout": func(s string) string { return s + "!" }})

	out, err := r.Render("x.hbs", `{{shout name}}`, map[string]any{"name": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)

	// Handlebars treats an unknown helper as a field lookup.
	out, err = r.Render("x.hbs", `[{{formatWeight 1}}]`, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	out, err = r.Render("x.hbs", `[{{formatWeight}}]`, map[string]any{"formatWeight": "field"})
	require.NoError(t, err)
	assert.Equal(t, "[field]", out)

	_, err = r.Render("x.tmpl", `{{formatWeight 1}}`, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTemplateCompile))
	assert.Contains(t, err.Error(), `function "formatWeight" not defined`)
}

func TestEngineFor(t *testing.T) {
	assert.Equal(t, EngineHandlebars, EngineFor("a.hbs"))
	assert.Equal(t, EngineHandlebars, EngineFor("a.handlebars"))
	assert.Equal(t, EngineHandlebars, EngineFor("a.html"))
	assert.Equal(t, EngineGo, EngineFor("a.tmpl"))
	assert.Equal(t, EngineGo, EngineFor("a.GOHTML"))
}
