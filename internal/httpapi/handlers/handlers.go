package handlers

import (
	"context"

	"cardrender/internal/models"
	"cardrender/internal/pipeline"
	"cardrender/internal/pkg/logger"
	"cardrender/internal/ports"
)

// Pipeline runs one render job to a published URL.
type Pipeline interface {
	Run(ctx context.Context, job pipeline.Job) (pipeline.Result, error)
}

type TemplateLister interface {
	List() ([]string, error)
}

// Ledger is the read side of the render ledger.
type Ledger interface {
	List(ctx context.Context, limit int) ([]models.Render, error)
	Ping(ctx context.Context) error
}

type Deps struct {
	Pipeline  Pipeline
	Templates TemplateLister
	// Ledger is nil when no database is configured.
	Ledger       Ledger
	SP           ports.StorageProvider
	Log          *logger.Logger
	Service      string
	Version      string
	MaxBodyBytes int64
}

type Handler struct {
	pipeline     Pipeline
	templates    TemplateLister
	ledger       Ledger
	sp           ports.StorageProvider
	log          *logger.Logger
	service      string
	version      string
	maxBodyBytes int64
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewNop()
	}
	service := d.Service
	if service == "" {
		service = "cardrender"
	}
	return &Handler{
		pipeline:     d.Pipeline,
		templates:    d.Templates,
		ledger:       d.Ledger,
		sp:           d.SP,
		log:          log,
		service:      service,
		version:      d.Version,
		maxBodyBytes: d.MaxBodyBytes,
	}
}
