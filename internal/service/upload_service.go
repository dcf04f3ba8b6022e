package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	apperrors "pharmcatalog/internal/errors"
)

// FileStore persists one upload and returns its public reference path.
type FileStore interface {
	Save(originalName string, r io.Reader) (string, error)
	Remove(ref string) error
}

// UploadLimits bounds what a single request may attach.
type UploadLimits struct {
	MaxFiles     int
	MaxFileBytes int64
}

// Rejection explains why one attachment was not stored.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// UploadResult lists stored references in received order plus rejections.
type UploadResult struct {
	Images   []string    `json:"images"`
	Rejected []Rejection `json:"rejected,omitempty"`
}

// UploadService validates and stores image attachments.
type UploadService interface {
	Store(ctx context.Context, files []*multipart.FileHeader) (*UploadResult, error)
	Discard(ctx context.Context, refs []string)
}

type uploadService struct {
	store  FileStore
	limits UploadLimits
	log    zerolog.Logger
}

// NewUploadService creates an upload service writing to store.
func NewUploadService(store FileStore, limits UploadLimits, log zerolog.Logger) UploadService {
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = 10
	}
	return &uploadService{store: store, limits: limits, log: log}
}

// Store saves every acceptable file. A file that is too large or not an
// image is rejected on its own; the rest are still stored. More files than
// MaxFiles fails the whole request before anything is written.
func (s *uploadService) Store(ctx context.Context, files []*multipart.FileHeader) (*UploadResult, error) {
	if len(files) > s.limits.MaxFiles {
		return nil, apperrors.NewValidationError(FieldImages, fmt.Sprintf("at most %d files are allowed", s.limits.MaxFiles))
	}

	result := &UploadResult{Images: make([]string, 0, len(files))}
	for _, fh := range files {
		if err := ctx.Err(); err != nil {
			s.Discard(ctx, result.Images)
			return nil, err
		}
		ref, reason, err := s.storeOne(fh)
		if err != nil {
			s.Discard(ctx, result.Images)
			return nil, fmt.Errorf("store %s: %w", fh.Filename, err)
		}
		if reason != "" {
			s.log.Warn().Str("file", fh.Filename).Int64("size", fh.Size).Str("reason", reason).Msg("upload rejected")
			result.Rejected = append(result.Rejected, Rejection{Name: fh.Filename, Reason: reason})
			continue
		}
		result.Images = append(result.Images, ref)
	}
	return result, nil
}

// Discard removes files stored by an earlier Store whose request then
// failed. Removal errors are logged, not returned.
func (s *uploadService) Discard(_ context.Context, refs []string) {
	for _, ref := range refs {
		if err := s.store.Remove(ref); err != nil {
			s.log.Warn().Err(err).Str("ref", ref).Msg("discard upload")
		}
	}
}

// storeOne returns either a reference, a rejection reason, or a storage error.
func (s *uploadService) storeOne(fh *multipart.FileHeader) (string, string, error) {
	if s.limits.MaxFileBytes > 0 && fh.Size > s.limits.MaxFileBytes {
		return "", fmt.Sprintf("file exceeds %d bytes", s.limits.MaxFileBytes), nil
	}

	f, err := fh.Open()
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", "", err
	}
	if !allowedImage(mtype) {
		return "", fmt.Sprintf("unsupported content type %s", mtype.String()), nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", "", err
	}

	ref, err := s.store.Save(fh.Filename, f)
	if err != nil {
		return "", "", err
	}
	return ref, "", nil
}

// allowedImageTypes lists the raster formats served back to browsers.
// Vector formats such as SVG can carry script and are refused.
var allowedImageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

func allowedImage(mtype *mimetype.MIME) bool {
	for _, t := range allowedImageTypes {
		if mtype.Is(t) {
			return true
		}
	}
	return false
}
