// Command render renders one template to a local PNG without uploading it.
// With -server it asks a running service to render and publish instead.
//
//	render -template personal_progress_v1 -data player.json -kind personal -out card.png
//	render -server http://localhost:3000 -api-key $API_KEY -kind personal -data player.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cardrender/internal/app"
	"cardrender/internal/client"
	"cardrender/internal/config"
	renderv1 "cardrender/internal/contracts/render/v1"
	"cardrender/internal/pipeline"
	"cardrender/internal/pkg/logger"
	"cardrender/internal/presentation"
	"cardrender/internal/render"
)

func main() {
	var (
		template    = flag.String("template", "", "template id, resolved like the service does")
		templateURL = flag.String("template-url", "", "absolute template URL, overrides -template")
		dataPath    = flag.String("data", "", "JSON data file, or - for stdin")
		kind        = flag.String("kind", "generic", "generic, leaderboard or personal")
		width       = flag.Int("width", 1080, "viewport width in CSS pixels")
		height      = flag.Int("height", 1350, "viewport height in CSS pixels")
		out         = flag.String("out", "card.png", "output PNG path")
		verbose     = flag.Bool("v", false, "debug logging")
		server      = flag.String("server", "", "render service base URL; publishes remotely instead of writing -out")
		apiKey      = flag.String("api-key", os.Getenv("API_KEY"), "api key for -server")
	)
	flag.Parse()

	var err error
	if *server != "" {
		err = remote(*server, *apiKey, *template, *templateURL, *dataPath, *kind, *width, *height)
	} else {
		err = run(*template, *templateURL, *dataPath, *kind, *width, *height, *out, *verbose)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "render:", err)
		os.Exit(1)
	}
}

func run(template, templateURL, dataPath, kind string, width, height int, out string, verbose bool) error {
	cfg, err := config.Read()
	if err != nil {
		return err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "text", Output: os.Stderr, ServiceName: "cardrender-cli"})

	body, err := readData(dataPath)
	if err != nil {
		return err
	}
	data, err := shape(kind, body)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, res := app.NewResolver(cfg, log)
	rast, closeBrowser, err := app.NewRasterizer(cfg, log)
	if err != nil {
		return err
	}
	defer closeBrowser()

	p := pipeline.New(pipeline.Deps{
		Resolver:   res,
		Renderer:   render.New(nil),
		Rasterizer: rast,
		Log:        log,
	})

	png, src, err := p.Capture(ctx, pipeline.Job{
		Kind:        kind,
		Template:    template,
		TemplateURL: templateURL,
		Data:        data,
		Width:       width,
		Height:      height,
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, png, 0o644); err != nil {
		return err
	}
	fmt.Printf("%s -> %s (%d bytes)\n", src.Name, out, len(png))
	return nil
}

func remote(server, apiKey, template, templateURL, dataPath, kind string, width, height int) error {
	body, err := readData(dataPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Options{BaseURL: server, APIKey: apiKey})

	var url string
	switch kind {
	case "generic", "":
		w, h := float64(width), float64(height)
		url, err = c.Render(ctx, renderv1.RenderRequest{
			Template:    template,
			TemplateURL: templateURL,
			Data:        body,
			Width:       &w,
			Height:      &h,
		})
	case "leaderboard", "personal":
		if template != "" {
			body["template"] = template
		}
		if templateURL != "" {
			body["template_url"] = templateURL
		}
		if kind == "leaderboard" {
			url, err = c.RenderLeaderboard(ctx, body)
		} else {
			url, err = c.RenderPersonal(ctx, body)
		}
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}

func readData(p string) (map[string]any, error) {
	if p == "" {
		return map[string]any{}, nil
	}

	var r io.Reader = os.Stdin
	if p != "-" {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var body map[string]any
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// shape adds the same "view" the service's legacy endpoints add.
func shape(kind string, body map[string]any) (map[string]any, error) {
	switch kind {
	case "generic", "":
		return body, nil
	case "leaderboard":
		return presentation.WithView(body, presentation.LeaderboardView(body))
	case "personal":
		return presentation.WithView(body, presentation.PersonalView(body))
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}
