package renderjob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/repos"
	"github.com/nestplan/nestplan-backend/internal/services"
	"github.com/nestplan/nestplan-backend/internal/sse"
	"github.com/nestplan/nestplan-backend/internal/types"
)

// Activity names are referenced by string from the workflows so the worker
// registration stays the single source of truth for implementations.
const (
	ActivityMarkJobRunning   = "MarkJobRunning"
	ActivityMarkJobFailed    = "MarkJobFailed"
	ActivityRenderRoom       = "RenderRoom"
	ActivityCompleteRender   = "CompleteRender"
	ActivityOptimizeImage    = "OptimizeImage"
	ActivityCompleteOptimize = "CompleteOptimize"
)

type RenderResult struct {
	AssetID    string `json:"asset_id"`
	StorageKey string `json:"storage_key"`
}

type OptimizeResult struct {
	OriginalBytes  int64 `json:"original_bytes"`
	OptimizedBytes int64 `json:"optimized_bytes"`
}

// Activities carries the worker-side dependencies for render and optimize
// jobs. One instance is registered per worker process.
type Activities struct {
	jobs   repos.JobRunRepo
	rooms  repos.RoomRepo
	assets repos.AssetRepo
	users  repos.UserRepo
	bucket services.BucketService
	ai     services.OpenAIClient
	emit   services.SSEEmitter
	emails services.EmailService
	log    *logger.Logger
}

func NewActivities(
	jobs repos.JobRunRepo,
	rooms repos.RoomRepo,
	assets repos.AssetRepo,
	users repos.UserRepo,
	bucket services.BucketService,
	ai services.OpenAIClient,
	emit services.SSEEmitter,
	emails services.EmailService,
	log *logger.Logger,
) *Activities {
	return &Activities{
		jobs:   jobs,
		rooms:  rooms,
		assets: assets,
		users:  users,
		bucket: bucket,
		ai:     ai,
		emit:   emit,
		emails: emails,
		log:    log.With("component", "RenderJobActivities"),
	}
}

func (a *Activities) MarkJobRunning(ctx context.Context, jobID string) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", jobID, err)
	}
	return a.jobs.MarkRunning(ctx, nil, id)
}

func (a *Activities) MarkJobFailed(ctx context.Context, jobID string, errMsg string) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", jobID, err)
	}
	raw, _ := json.Marshal(map[string]string{"error": errMsg})
	return a.jobs.MarkError(ctx, nil, id, raw)
}

func (a *Activities) RenderRoom(ctx context.Context, in RenderRoomInput) (RenderResult, error) {
	userID, err := uuid.Parse(in.UserID)
	if err != nil {
		return RenderResult{}, fmt.Errorf("invalid user id: %w", err)
	}
	roomID, err := uuid.Parse(in.RoomID)
	if err != nil {
		return RenderResult{}, fmt.Errorf("invalid room id: %w", err)
	}

	room, err := a.rooms.GetByID(ctx, nil, roomID)
	if err != nil {
		return RenderResult{}, err
	}
	if room == nil {
		return RenderResult{}, fmt.Errorf("room %s not found", roomID)
	}

	prompt := renderPrompt(room, in.Prompt)
	img, err := a.ai.GenerateImage(ctx, prompt, "1536x1024")
	if err != nil {
		return RenderResult{}, fmt.Errorf("render generation failed: %w", err)
	}

	assetID := uuid.New()
	key := fmt.Sprintf("renders/%s/%s/%s.png", userID, roomID, assetID)
	if err := a.bucket.UploadFile(ctx, key, "image/png", bytes.NewReader(img)); err != nil {
		return RenderResult{}, err
	}

	asset := &types.Asset{
		ID:          assetID,
		UserID:      userID,
		StorageKey:  key,
		ContentType: "image/png",
		SizeBytes:   int64(len(img)),
		Status:      types.AssetStatusUploaded,
	}
	if _, err := a.assets.Create(ctx, nil, []*types.Asset{asset}); err != nil {
		return RenderResult{}, fmt.Errorf("failed to record render asset: %w", err)
	}

	return RenderResult{AssetID: assetID.String(), StorageKey: key}, nil
}

func (a *Activities) CompleteRender(ctx context.Context, in RenderRoomInput, out RenderResult) error {
	jobID, err := uuid.Parse(in.JobID)
	if err != nil {
		return fmt.Errorf("invalid job id: %w", err)
	}
	raw, _ := json.Marshal(out)
	if err := a.jobs.MarkDone(ctx, nil, jobID, raw); err != nil {
		return err
	}
	a.emit.Emit(ctx, sse.SSEMessage{
		Channel: in.UserID,
		Event:   sse.SSEEventRenderReady,
		Data: map[string]any{
			"job_id":   in.JobID,
			"room_id":  in.RoomID,
			"asset_id": out.AssetID,
		},
	})
	a.notifyRenderReady(ctx, in, out)
	return nil
}

// notifyRenderReady emails the render link; delivery problems never fail the
// completion activity.
func (a *Activities) notifyRenderReady(ctx context.Context, in RenderRoomInput, out RenderResult) {
	if a.emails == nil || a.users == nil {
		return
	}
	userID, err := uuid.Parse(in.UserID)
	if err != nil {
		return
	}
	users, err := a.users.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil || len(users) == 0 {
		a.log.Warn("Render-ready email skipped, user lookup failed", "user_id", in.UserID, "error", err)
		return
	}
	var room *types.Room
	if roomID, rErr := uuid.Parse(in.RoomID); rErr == nil {
		room, _ = a.rooms.GetByID(ctx, nil, roomID)
	}
	imageURL, err := a.bucket.SignedReadURL(out.StorageKey, 24*time.Hour)
	if err != nil {
		a.log.Warn("Render-ready email without link, signing failed", "storage_key", out.StorageKey, "error", err)
	}
	a.emails.SendRenderReady(ctx, users[0], room, imageURL)
}

func (a *Activities) OptimizeImage(ctx context.Context, in OptimizeImageInput) (OptimizeResult, error) {
	assetID, err := uuid.Parse(in.AssetID)
	if err != nil {
		return OptimizeResult{}, fmt.Errorf("invalid asset id: %w", err)
	}
	asset, err := a.assets.GetByID(ctx, nil, assetID)
	if err != nil {
		return OptimizeResult{}, err
	}
	if asset == nil {
		return OptimizeResult{}, fmt.Errorf("asset %s not found", assetID)
	}

	original, err := a.bucket.DownloadFile(ctx, asset.StorageKey)
	if err != nil {
		return OptimizeResult{}, err
	}

	decoded, _, err := image.Decode(bytes.NewReader(original))
	if err != nil {
		return OptimizeResult{}, fmt.Errorf("failed to decode asset %s: %w", assetID, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: 85}); err != nil {
		return OptimizeResult{}, fmt.Errorf("failed to re-encode asset %s: %w", assetID, err)
	}

	// Only replace when recompression actually helped.
	if buf.Len() >= len(original) {
		return OptimizeResult{
			OriginalBytes:  int64(len(original)),
			OptimizedBytes: int64(len(original)),
		}, nil
	}

	if err := a.bucket.UploadFile(ctx, asset.StorageKey, "image/jpeg", bytes.NewReader(buf.Bytes())); err != nil {
		return OptimizeResult{}, err
	}
	if err := a.assets.MarkUploaded(ctx, nil, assetID, int64(buf.Len())); err != nil {
		return OptimizeResult{}, err
	}

	return OptimizeResult{
		OriginalBytes:  int64(len(original)),
		OptimizedBytes: int64(buf.Len()),
	}, nil
}

func (a *Activities) CompleteOptimize(ctx context.Context, in OptimizeImageInput, out OptimizeResult) error {
	jobID, err := uuid.Parse(in.JobID)
	if err != nil {
		return fmt.Errorf("invalid job id: %w", err)
	}
	raw, _ := json.Marshal(out)
	if err := a.jobs.MarkDone(ctx, nil, jobID, raw); err != nil {
		return err
	}
	a.emit.Emit(ctx, sse.SSEMessage{
		Channel: in.UserID,
		Event:   sse.SSEEventJobUpdated,
		Data: map[string]any{
			"job_id":   in.JobID,
			"asset_id": in.AssetID,
			"status":   types.JobStatusDone,
		},
	})
	return nil
}

// renderPrompt builds the image prompt from the saved plan; extra is the
// user's own refinement carried through the render request, appended last so
// it wins over the derived description.
func renderPrompt(room *types.Room, extra string) string {
	var b strings.Builder
	b.WriteString("Photorealistic interior render of a ")
	if room.Kind != "" {
		b.WriteString(strings.ReplaceAll(room.Kind, "_", " "))
	} else {
		b.WriteString("room")
	}
	if room.Name != "" {
		b.WriteString(fmt.Sprintf(" (%s)", room.Name))
	}
	b.WriteString(".")
	if len(room.Plan) > 0 {
		var plan map[string]any
		if err := json.Unmarshal(room.Plan, &plan); err == nil {
			if layout, ok := plan["layout"].(string); ok && layout != "" {
				b.WriteString(" Layout: " + layout + ".")
			}
			if palette, ok := plan["palette"].(string); ok && palette != "" {
				b.WriteString(" Color palette: " + palette + ".")
			}
			if style, ok := plan["style"].(string); ok && style != "" {
				b.WriteString(" Style: " + style + ".")
			}
		}
	}
	if room.Notes != "" {
		b.WriteString(" Notes: " + room.Notes)
	}
	if extra = strings.TrimSpace(extra); extra != "" {
		b.WriteString(" " + extra)
	}
	return b.String()
}
