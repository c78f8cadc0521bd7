package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/logger"
	"github.com/timmy/sitequeue/internal/storage"
	_ "golang.org/x/image/webp"
)

// ErrStorageDisabled is returned when no object storage is configured.
var ErrStorageDisabled = errors.New("asset storage is not configured")

// AssetService uploads images operators place into IMAGES content.
type AssetService struct {
	storage  storage.ObjectStorage
	store    RequestStore
	maxBytes int64
}

// NewAssetService creates a new asset service. A nil storage disables uploads.
func NewAssetService(objectStorage storage.ObjectStorage, store RequestStore, maxBytes int64) *AssetService {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &AssetService{storage: objectStorage, store: store, maxBytes: maxBytes}
}

// AssetUpload is one image to store for a request.
type AssetUpload struct {
	RequestID string
	AdminID   string
	Name      string
	Alt       string
	Reader    io.Reader
}

// Asset describes a stored image.
type Asset struct {
	Name        string          `json:"name"`
	Key         string          `json:"key"`
	URL         string          `json:"url"`
	ContentType string          `json:"content_type"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Size        int64           `json:"size"`
	Ref         domain.ImageRef `json:"ref"`
}

// Upload validates an image and stores it under requests/<id>/<name>-<hash>.<ext>.
// Identical bytes map to the same key and are uploaded once.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - in: request, operator and image data.
// Returns:
//   - *Asset: stored object with a ready-to-use image reference.
//   - error: *domain.ValidationError for oversized or undecodable images,
//     guard errors when the operator does not hold a processing request.
func (s *AssetService) Upload(ctx context.Context, in AssetUpload) (*Asset, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	if err := requireOperator(in.AdminID); err != nil {
		return nil, err
	}

	req, err := s.store.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusProcessing {
		return nil, &domain.InvalidTransitionError{
			RequestID: req.ID, From: req.Status, To: domain.StatusCompleted,
			Reason: "assets can only be added while processing",
		}
	}
	if req.HolderID() != in.AdminID {
		return nil, &domain.NotAuthorizedError{RequestID: req.ID, AdminID: in.AdminID, HolderID: req.HolderID()}
	}

	data, err := io.ReadAll(io.LimitReader(in.Reader, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, domain.NewValidationError("file", "exceeds %d bytes", s.maxBytes)
	}
	if len(data) == 0 {
		return nil, domain.NewValidationError("file", "is empty")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewValidationError("file", "not a supported image (jpeg, png, gif, webp)")
	}

	name := sanitizeAssetName(in.Name)
	sum := md5.Sum(data)
	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	key := fmt.Sprintf("requests/%s/%s-%s.%s", req.ID, name, hex.EncodeToString(sum[:])[:12], ext)
	contentType := "image/" + format

	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			return nil, err
		}
	}

	url := s.storage.GetURL(key)
	logger.With(logger.Fields{
		logger.FieldAIRequestID: req.ID,
		logger.FieldAdminID:     in.AdminID,
		"key":                   key,
		"deduplicated":          exists,
	}).Info(ctx, "Asset stored")

	return &Asset{
		Name:        name,
		Key:         key,
		URL:         url,
		ContentType: contentType,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Size:        int64(len(data)),
		Ref:         domain.ImageRef{URL: url, Alt: in.Alt, StorageKey: key},
	}, nil
}

// sanitizeAssetName keeps lowercase letters, digits, '-' and '_'.
func sanitizeAssetName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
