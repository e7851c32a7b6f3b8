package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/sendgrid"
	"github.com/nestplan/nestplan-backend/internal/types"
)

// EmailService sends transactional mail. All sends are best-effort: failures
// are logged and never bubble into the calling request.
type EmailService interface {
	SendWelcome(ctx context.Context, user *types.User)
	SendPlanReady(ctx context.Context, user *types.User, room *types.Room)
	SendRenderReady(ctx context.Context, user *types.User, room *types.Room, imageURL string)
}

type emailService struct {
	client sendgrid.Client
	log    *logger.Logger
}

// NewEmailService accepts a nil client; every send becomes a logged no-op.
// That keeps local dev working without a SENDGRID_API_KEY.
func NewEmailService(client sendgrid.Client, baseLog *logger.Logger) EmailService {
	return &emailService{
		client: client,
		log:    baseLog.With("service", "EmailService"),
	}
}

func (s *emailService) SendWelcome(ctx context.Context, user *types.User) {
	if user == nil || strings.TrimSpace(user.Email) == "" {
		return
	}
	name := displayName(user)
	s.send(ctx, sendgrid.SendEmailRequest{
		To:      []sendgrid.EmailAddress{{Email: user.Email, Name: name}},
		Subject: "Welcome to Nestplan",
		Text: fmt.Sprintf(
			"Hi %s,\n\nWelcome to Nestplan. Start a conversation and tell us about the room you want to plan.\n",
			name,
		),
		Categories: []string{"welcome"},
	})
}

func (s *emailService) SendPlanReady(ctx context.Context, user *types.User, room *types.Room) {
	if user == nil || strings.TrimSpace(user.Email) == "" {
		return
	}
	roomName := "your room"
	if room != nil && strings.TrimSpace(room.Name) != "" {
		roomName = room.Name
	}
	s.send(ctx, sendgrid.SendEmailRequest{
		To:      []sendgrid.EmailAddress{{Email: user.Email, Name: displayName(user)}},
		Subject: fmt.Sprintf("Your plan for %s is ready", roomName),
		Text: fmt.Sprintf(
			"Hi %s,\n\nYour plan for %s is saved. Open Nestplan to review the layout, palette, and product picks.\n",
			displayName(user), roomName,
		),
		Categories: []string{"plan_ready"},
	})
}

func (s *emailService) SendRenderReady(ctx context.Context, user *types.User, room *types.Room, imageURL string) {
	if user == nil || strings.TrimSpace(user.Email) == "" {
		return
	}
	roomName := "your room"
	if room != nil && strings.TrimSpace(room.Name) != "" {
		roomName = room.Name
	}
	body := fmt.Sprintf("Hi %s,\n\nYour render of %s is ready.\n", displayName(user), roomName)
	if strings.TrimSpace(imageURL) != "" {
		body += fmt.Sprintf("\nView it here: %s\n", imageURL)
	}
	s.send(ctx, sendgrid.SendEmailRequest{
		To:         []sendgrid.EmailAddress{{Email: user.Email, Name: displayName(user)}},
		Subject:    fmt.Sprintf("Your render of %s is ready", roomName),
		Text:       body,
		Categories: []string{"render_ready"},
	})
}

func (s *emailService) send(ctx context.Context, req sendgrid.SendEmailRequest) {
	if s.client == nil {
		s.log.Info("Email skipped, sendgrid not configured", "subject", req.Subject)
		return
	}
	res, err := s.client.Send(ctx, req)
	if err != nil {
		s.log.Error("Failed to send email", "subject", req.Subject, "error", err)
		return
	}
	s.log.Info("Email sent", "subject", req.Subject, "status", res.StatusCode, "message_id", res.MessageID)
}

func displayName(user *types.User) string {
	if n := strings.TrimSpace(user.Name); n != "" {
		return n
	}
	return user.Email
}
