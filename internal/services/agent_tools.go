package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/agent"
	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/repos"
	"github.com/nestplan/nestplan-backend/internal/requestdata"
)

// AgentToolDeps are the services the engine tools act through. Tools resolve
// the calling user and thread from request data on the context.
type AgentToolDeps struct {
	Styles   StyleService
	Products ProductService
	Rooms    RoomService
	Threads  repos.ChatThreadRepo
	Users    repos.UserRepo
	Jobs     JobService
	Emails   EmailService
	Log      *logger.Logger
}

// NewAgentToolRegistry builds the engine's tool registry. Registration order
// is the order tools are presented to the model.
func NewAgentToolRegistry(deps AgentToolDeps) (*agent.Registry, error) {
	registry := agent.NewRegistry()
	log := deps.Log.With("component", "AgentTools")

	tools := []agent.Tool{
		lookupStyleTool(deps),
		searchProductsTool(deps),
		saveRoomPlanTool(deps, log),
		requestRenderTool(deps),
		updateChecklistTool(deps, log),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func lookupStyleTool(deps AgentToolDeps) agent.Tool {
	return agent.Tool{
		Name:        "lookup_style",
		Description: "Look up one of the user's saved style profiles by name. Returns the palette and tags, or found=false when the user has no profile with that name.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Style profile name, e.g. 'scandinavian' or 'cozy modern'.",
				},
			},
			"required": []string{"name"},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			userID := requestdata.UserID(ctx)
			if userID == uuid.Nil {
				return nil, fmt.Errorf("no authenticated user on request")
			}
			name, _ := args["name"].(string)
			if strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("name is required")
			}
			profile, err := deps.Styles.GetByName(ctx, userID, name)
			if err != nil {
				return nil, err
			}
			if profile == nil {
				return map[string]any{"found": false, "name": name}, nil
			}
			return map[string]any{
				"found":   true,
				"id":      profile.ID,
				"name":    profile.Name,
				"palette": profile.Palette,
				"tags":    profile.Tags,
			}, nil
		},
	}
}

func searchProductsTool(deps AgentToolDeps) agent.Tool {
	return agent.Tool{
		Name:        "search_products",
		Description: "Search the furniture and decor catalog. All filters are optional; results are sorted cheapest first.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Free-text match on product name.",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Exact category, e.g. 'sofa', 'rug', 'lighting'.",
				},
				"max_price_cents": map[string]any{
					"type":        "integer",
					"description": "Upper price bound in cents.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Max results, default 20.",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			search := repos.ProductSearch{}
			if q, ok := args["query"].(string); ok {
				search.Query = q
			}
			if c, ok := args["category"].(string); ok {
				search.Category = c
			}
			if p, ok := args["max_price_cents"].(float64); ok {
				search.MaxPriceCents = int64(p)
			}
			if l, ok := args["limit"].(float64); ok {
				search.Limit = int(l)
			}
			products, err := deps.Products.Search(ctx, search)
			if err != nil {
				return nil, err
			}
			return map[string]any{"count": len(products), "products": products}, nil
		},
	}
}

func saveRoomPlanTool(deps AgentToolDeps, log *logger.Logger) agent.Tool {
	return agent.Tool{
		Name:        "save_room_plan",
		Description: "Save the current room plan (layout, palette, style, product picks) to the room attached to this conversation. Creates the room on first save.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"room_name": map[string]any{
					"type":        "string",
					"description": "Room name; used when the conversation has no room yet.",
				},
				"plan": map[string]any{
					"type":        "object",
					"description": "The plan document: layout, palette, style, products.",
				},
			},
			"required": []string{"plan"},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			userID := requestdata.UserID(ctx)
			rd := requestdata.GetRequestData(ctx)
			if userID == uuid.Nil || rd == nil {
				return nil, fmt.Errorf("no authenticated user on request")
			}
			plan, ok := args["plan"].(map[string]any)
			if !ok || len(plan) == 0 {
				return nil, fmt.Errorf("plan object is required")
			}
			roomName, _ := args["room_name"].(string)

			roomID, err := resolveThreadRoom(ctx, deps, userID, rd.ThreadID, roomName)
			if err != nil {
				return nil, err
			}
			if err := deps.Rooms.SavePlan(ctx, userID, roomID, plan); err != nil {
				return nil, err
			}
			log.Info("Room plan saved", "thread_id", rd.ThreadID, "room_id", roomID)
			notifyPlanReady(ctx, deps, userID, roomID)
			return map[string]any{"saved": true, "room_id": roomID}, nil
		},
	}
}

func requestRenderTool(deps AgentToolDeps) agent.Tool {
	return agent.Tool{
		Name:        "request_render",
		Description: "Request a photorealistic render of the saved room plan. Rendering runs in the background; the user is notified when it is ready.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "Optional extra guidance for the render, e.g. 'warm evening light, view from the door'.",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			userID := requestdata.UserID(ctx)
			rd := requestdata.GetRequestData(ctx)
			if userID == uuid.Nil || rd == nil {
				return nil, fmt.Errorf("no authenticated user on request")
			}
			thread, err := deps.Threads.GetByID(ctx, nil, rd.ThreadID)
			if err != nil {
				return nil, err
			}
			if thread == nil || thread.RoomID == nil {
				return nil, fmt.Errorf("no room with a saved plan on this conversation; save a plan first")
			}
			prompt, _ := args["prompt"].(string)
			job, err := deps.Jobs.EnqueueRenderRoom(ctx, userID, *thread.RoomID, prompt)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"queued":  true,
				"job_id":  job.ID,
				"room_id": thread.RoomID,
			}, nil
		},
	}
}

func updateChecklistTool(deps AgentToolDeps, log *logger.Logger) agent.Tool {
	return agent.Tool{
		Name:        "update_checklist",
		Description: "Replace the room's decision checklist with the given items.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"items": map[string]any{
					"type":        "array",
					"description": "Checklist items.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"label": map[string]any{"type": "string"},
							"done":  map[string]any{"type": "boolean"},
						},
						"required": []string{"label"},
					},
				},
			},
			"required": []string{"items"},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			userID := requestdata.UserID(ctx)
			rd := requestdata.GetRequestData(ctx)
			if userID == uuid.Nil || rd == nil {
				return nil, fmt.Errorf("no authenticated user on request")
			}
			items, ok := args["items"].([]any)
			if !ok {
				return nil, fmt.Errorf("items array is required")
			}
			roomID, err := resolveThreadRoom(ctx, deps, userID, rd.ThreadID, "")
			if err != nil {
				return nil, err
			}
			if err := deps.Rooms.SaveChecklist(ctx, userID, roomID, map[string]any{"items": items}); err != nil {
				return nil, err
			}
			log.Info("Checklist updated", "thread_id", rd.ThreadID, "room_id", roomID, "items", len(items))
			return map[string]any{"saved": true, "room_id": roomID, "items": len(items)}, nil
		},
	}
}

// notifyPlanReady is best-effort; the tool result never depends on it.
func notifyPlanReady(ctx context.Context, deps AgentToolDeps, userID, roomID uuid.UUID) {
	if deps.Emails == nil || deps.Users == nil {
		return
	}
	users, err := deps.Users.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil || len(users) == 0 {
		return
	}
	room, err := deps.Rooms.GetByID(ctx, userID, roomID)
	if err != nil {
		return
	}
	go deps.Emails.SendPlanReady(context.Background(), users[0], room)
}

// resolveThreadRoom returns the thread's room, creating and linking one when
// the conversation has none yet.
func resolveThreadRoom(ctx context.Context, deps AgentToolDeps, userID, threadID uuid.UUID, roomName string) (uuid.UUID, error) {
	thread, err := deps.Threads.GetByID(ctx, nil, threadID)
	if err != nil {
		return uuid.Nil, err
	}
	if thread == nil || thread.UserID != userID {
		return uuid.Nil, fmt.Errorf("thread %s not found", threadID)
	}
	if thread.RoomID != nil && *thread.RoomID != uuid.Nil {
		return *thread.RoomID, nil
	}

	name := strings.TrimSpace(roomName)
	if name == "" {
		name = "My room"
	}
	room, err := deps.Rooms.Create(ctx, userID, CreateRoomInput{Name: name})
	if err != nil {
		return uuid.Nil, err
	}
	if err := deps.Threads.UpdateFields(ctx, nil, threadID, map[string]interface{}{"room_id": room.ID}); err != nil {
		return uuid.Nil, err
	}
	return room.ID, nil
}
