package files

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"messaging-service/internal/models"
)

// Limits carries the per-category upload ceilings in bytes.
type Limits struct {
	Image int64
	Video int64
	File  int64
}

// SizeLimitError reports an upload over the ceiling for its category.
type SizeLimitError struct {
	Category models.MessageKind
	Limit    int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s exceeds the %d byte limit", e.Category, e.Limit)
}

// ErrExtensionNotAllowed rejects uploads outside the allow list.
var ErrExtensionNotAllowed = fmt.Errorf("file extension not allowed")

var allowedExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
	".mp4": {}, ".mov": {}, ".avi": {}, ".webm": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {}, ".txt": {}, ".csv": {}, ".zip": {},
}

// Categorize maps a filename extension to the message kind that carries it.
func Categorize(filename string) models.MessageKind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return models.KindImage
	case ".mp4", ".mov", ".avi", ".webm":
		return models.KindVideo
	default:
		return models.KindFile
	}
}

// Ref describes a stored attachment.
type Ref struct {
	URL      string
	Category models.MessageKind
	Name     string
	Mime     string
}

// Store persists uploaded attachments and hands back a servable reference.
type Store interface {
	Save(ctx context.Context, data []byte, filename string, scope string) (Ref, error)
}

// LocalStore keeps uploads on the local filesystem under a root directory,
// partitioned by category and scope.
type LocalStore struct {
	root   string
	limits Limits
}

// NewLocalStore constructs a LocalStore rooted at dir.
func NewLocalStore(dir string, limits Limits) *LocalStore {
	return &LocalStore{root: dir, limits: limits}
}

func (s *LocalStore) limitFor(category models.MessageKind) int64 {
	switch category {
	case models.KindImage:
		return s.limits.Image
	case models.KindVideo:
		return s.limits.Video
	default:
		return s.limits.File
	}
}

// Save validates the upload against the allow list and size ceiling, then
// writes it under root/<category>/<scope>/ with a unique name.
func (s *LocalStore) Save(ctx context.Context, data []byte, filename string, scope string) (Ref, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return Ref{}, ErrExtensionNotAllowed
	}

	category := Categorize(filename)
	if limit := s.limitFor(category); int64(len(data)) > limit {
		return Ref{}, &SizeLimitError{Category: category, Limit: limit}
	}

	base := filepath.Base(filename)
	stored := uuid.NewString() + "_" + base
	dir := filepath.Join(s.root, string(category), scope)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Ref{}, fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stored), data, 0o644); err != nil {
		return Ref{}, fmt.Errorf("write upload: %w", err)
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	logrus.WithFields(logrus.Fields{
		"category": category,
		"scope":    scope,
		"bytes":    len(data),
	}).Debug("attachment stored")

	return Ref{
		URL:      "/api/files/" + string(category) + "/" + scope + "/" + stored,
		Category: category,
		Name:     base,
		Mime:     mimeType,
	}, nil
}

// Resolve maps a request path below /api/files/ back to a local path, refusing
// anything that escapes the root.
func (s *LocalStore) Resolve(rel string) (string, error) {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ".." {
			return "", fmt.Errorf("path escapes upload root")
		}
	}
	return filepath.Join(s.root, filepath.Clean("/"+rel)), nil
}
