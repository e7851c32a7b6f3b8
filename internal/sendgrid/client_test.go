package sendgrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nestplan/nestplan-backend/internal/logger"
)

func newTestClient(t *testing.T, baseURL string) Client {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c, err := New(log, Config{
		APIKey:           "test-key",
		BaseURL:          baseURL,
		DefaultFromEmail: "noreply@nestplan.app",
		DefaultFromName:  "Nestplan",
		Timeout:          5 * time.Second,
		MaxRetries:       2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestSendBuildsMailRequest(t *testing.T) {
	var got mailSendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("X-Message-Id", "msg-123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res, err := c.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "user@example.com", Name: "User"}},
		Subject: "Welcome to Nestplan",
		Text:    "hello",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.StatusCode != http.StatusAccepted || res.MessageID != "msg-123" {
		t.Fatalf("result = %+v", res)
	}
	if auth != "Bearer test-key" {
		t.Fatalf("auth header = %q", auth)
	}
	if got.From.Email != "noreply@nestplan.app" {
		t.Fatalf("default from not applied: %+v", got.From)
	}
	if len(got.Personalizations) != 1 || got.Personalizations[0].To[0].Email != "user@example.com" {
		t.Fatalf("personalizations = %+v", got.Personalizations)
	}
	if len(got.Content) != 1 || got.Content[0].Type != "text/plain" {
		t.Fatalf("content = %+v", got.Content)
	}
}

func TestSendValidation(t *testing.T) {
	c := newTestClient(t, "http://localhost:1")

	cases := []struct {
		name string
		req  SendEmailRequest
	}{
		{"missing to", SendEmailRequest{Subject: "s", Text: "t"}},
		{"missing subject", SendEmailRequest{To: []EmailAddress{{Email: "a@b.c"}}, Text: "t"}},
		{"missing content", SendEmailRequest{To: []EmailAddress{{Email: "a@b.c"}}, Subject: "s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := c.Send(context.Background(), tc.req); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSendRetriesOn500(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res, err := c.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "user@example.com"}},
		Subject: "retry",
		Text:    "body",
	})
	if err != nil {
		t.Fatalf("Send after retry: %v", err)
	}
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestSendDoesNotRetryOn400(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad from"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "user@example.com"}},
		Subject: "nope",
		Text:    "body",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	he, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("error type %T", err)
	}
	if he.StatusCode != http.StatusBadRequest || len(he.Errors) == 0 || he.Errors[0].Message != "bad from" {
		t.Fatalf("http error = %+v", he)
	}
}
