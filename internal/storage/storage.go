package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("document not found")

// Store archives the original bytes of uploaded documents.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Key builds a unique object key for an upload: <user>/<timestamp>_<file name>.
func Key(userID uuid.UUID, fileName string, now time.Time) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	name = strings.ReplaceAll(name, " ", "_")
	return fmt.Sprintf("%s/%s_%s_%s", userID, now.UTC().Format("20060102T150405Z"), uuid.NewString()[:8], name)
}
