package resolver

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

const listPattern = "**/*.{hbs,handlebars,html,tmpl,gohtml}"

// Local reads templates from a directory on disk.
type Local struct {
	dir string
}

func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

func (l *Local) Name() string { return "local" }

// Lookup reads dir/name. Any read failure is a miss. The name is cleaned
// as a rooted path first so it cannot climb out of dir.
func (l *Local) Lookup(ctx context.Context, name string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	p := filepath.Join(l.dir, filepath.FromSlash(path.Clean("/"+name)))
	b, err := os.ReadFile(p)
	if err != nil {
		return miss("%v", err), nil
	}

	return Result{
		Found:  true,
		Source: Source{Name: name, Text: string(b), Origin: p},
	}, nil
}

// List returns the slash-separated names of every template under dir.
func (l *Local) List() ([]string, error) {
	names, err := doublestar.Glob(os.DirFS(l.dir), listPattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
