// Package ids generates identifiers for renders.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns prefix_<uuid v7 without dashes>. IDs sort by creation time.
func NewID(prefix string) string {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return prefix + "_" + strings.ReplaceAll(u.String(), "-", "")
}
