package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/repos"
	"github.com/nestplan/nestplan-backend/internal/types"
)

// SignedUpload is what the client needs to push a file to storage directly:
// the asset row id to reference later and the URL to PUT bytes to.
type SignedUpload struct {
	AssetID   uuid.UUID `json:"asset_id"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AssetService interface {
	// CreateSignedUpload registers a pending asset and signs an upload URL.
	CreateSignedUpload(ctx context.Context, userID uuid.UUID, filename, contentType string) (*SignedUpload, error)
	// ConfirmUpload marks the asset uploaded after the client finishes the PUT.
	ConfirmUpload(ctx context.Context, userID uuid.UUID, assetID uuid.UUID, sizeBytes int64) error
	GetByID(ctx context.Context, id uuid.UUID) (*types.Asset, error)
	// Resolve implements agent.AttachmentResolver: asset id to signed read URL.
	Resolve(ctx context.Context, assetID string) (string, error)
}

type assetService struct {
	assets    repos.AssetRepo
	bucket    BucketService
	uploadTTL time.Duration
	readTTL   time.Duration
	log       *logger.Logger
}

func NewAssetService(assets repos.AssetRepo, bucket BucketService, log *logger.Logger) AssetService {
	return &assetService{
		assets:    assets,
		bucket:    bucket,
		uploadTTL: 15 * time.Minute,
		readTTL:   1 * time.Hour,
		log:       log.With("service", "AssetService"),
	}
}

var allowedUploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

func (s *assetService) CreateSignedUpload(ctx context.Context, userID uuid.UUID, filename, contentType string) (*SignedUpload, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !allowedUploadTypes[contentType] {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	assetID := uuid.New()
	key := fmt.Sprintf("uploads/%s/%s/%s", userID, assetID, sanitizeFilename(filename))

	url, err := s.bucket.SignedUploadURL(key, contentType, s.uploadTTL)
	if err != nil {
		return nil, err
	}

	asset := &types.Asset{
		ID:          assetID,
		UserID:      userID,
		StorageKey:  key,
		ContentType: contentType,
		Status:      types.AssetStatusPending,
	}
	if _, err := s.assets.Create(ctx, nil, []*types.Asset{asset}); err != nil {
		return nil, fmt.Errorf("failed to create asset row: %w", err)
	}

	return &SignedUpload{
		AssetID:   assetID,
		UploadURL: url,
		ExpiresAt: time.Now().Add(s.uploadTTL),
	}, nil
}

func (s *assetService) ConfirmUpload(ctx context.Context, userID uuid.UUID, assetID uuid.UUID, sizeBytes int64) error {
	asset, err := s.assets.GetByID(ctx, nil, assetID)
	if err != nil {
		return err
	}
	if asset == nil || asset.UserID != userID {
		return fmt.Errorf("asset %s not found", assetID)
	}
	return s.assets.MarkUploaded(ctx, nil, assetID, sizeBytes)
}

func (s *assetService) GetByID(ctx context.Context, id uuid.UUID) (*types.Asset, error) {
	return s.assets.GetByID(ctx, nil, id)
}

func (s *assetService) Resolve(ctx context.Context, assetID string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(assetID))
	if err != nil {
		return "", fmt.Errorf("invalid asset id %q: %w", assetID, err)
	}
	asset, err := s.assets.GetByID(ctx, nil, id)
	if err != nil {
		return "", err
	}
	if asset == nil {
		return "", fmt.Errorf("asset %s not found", id)
	}
	if asset.Status != types.AssetStatusUploaded {
		return "", fmt.Errorf("asset %s not uploaded yet", id)
	}
	return s.bucket.SignedReadURL(asset.StorageKey, s.readTTL)
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
