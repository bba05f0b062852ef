// Package publisher stores rendered PNGs and builds their public URLs.
package publisher

import (
	"bytes"
	"context"
	"strings"
	"time"

	"cardrender/internal/pkg/errors"
	"cardrender/internal/pkg/logger"
	"cardrender/internal/ports"
)

const contentType = "image/png"

type Result struct {
	Key  string
	URL  string
	Size int64
}

type Publisher struct {
	sp         ports.StorageProvider
	publicBase string
	log        *logger.Logger
}

// New returns a Publisher whose URLs are publicBase + "/" + key.
func New(sp ports.StorageProvider, publicBase string, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Publisher{
		sp:         sp,
		publicBase: strings.TrimRight(publicBase, "/"),
		log:        log.WithComponent("publisher"),
	}
}

// ObjectKey is {folder}/{filename}.png, or {filename}.png without a folder.
func ObjectKey(folder, filename string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return filename + ".png"
	}
	return folder + "/" + filename + ".png"
}

// Publish uploads png under key with a single PUT. Reachability of the
// returned URL is not checked.
func (p *Publisher) Publish(ctx context.Context, png []byte, key string) (Result, error) {
	if len(png) == 0 {
		return Result{}, errors.New(errors.CodeUpload, "refusing to upload an empty image").WithField("key", key)
	}

	start := time.Now()
	out, err := p.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   key,
		ContentType: contentType,
		Reader:      bytes.NewReader(png),
		Size:        int64(len(png)),
	})
	if err != nil {
		return Result{}, errors.WrapWithCode(err, errors.CodeUpload, "publisher.publish", "upload failed").
			WithField("key", key).
			WithField("provider", p.sp.Provider())
	}

	res := Result{
		Key:  out.ObjectKey,
		URL:  p.publicBase + "/" + out.ObjectKey,
		Size: int64(len(png)),
	}
	p.log.FromContext(ctx).Debug("image published",
		"key", res.Key,
		"bytes", res.Size,
		"provider", p.sp.Provider(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
