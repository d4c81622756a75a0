package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/DelicateHug/DMaker-sub000/internal/config"
	"github.com/DelicateHug/DMaker-sub000/internal/reconciler"
)

func authNotice() reconciler.Notification {
	return reconciler.Notification{
		Kind:      reconciler.NotifyAuthError,
		FeatureID: "f1",
		Project:   "web",
		Title:     "Login",
		Message:   "agent credentials expired",
		Time:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		kind reconciler.NotificationKind
		want Severity
	}{
		{reconciler.NotifyAuthError, SeverityCritical},
		{reconciler.NotifyExecutionError, SeverityWarning},
		{reconciler.NotifyPlanApproval, SeverityBlocking},
		{reconciler.NotifyCompleted, SeverityInfo},
	}
	for _, tt := range tests {
		if got := SeverityOf(tt.kind); got != tt.want {
			t.Errorf("SeverityOf(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestTerminal_Send(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, nil)

	if err := term.Send(context.Background(), authNotice()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[critical] Login: agent credentials expired") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestTerminal_CustomFormat(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, func(n reconciler.Notification) string { return "custom " + n.FeatureID })

	if err := term.Send(context.Background(), authNotice()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "custom f1\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestTerminal_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewTerminal(&buf, nil).Send(ctx, authNotice()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written after cancellation")
	}
}

func TestWebhook_Send(t *testing.T) {
	var received WebhookPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewWebhook(server.URL).Send(context.Background(), authNotice()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received.Severity != "critical" {
		t.Errorf("expected severity 'critical', got %q", received.Severity)
	}
	if received.Kind != "auth_error" {
		t.Errorf("expected kind 'auth_error', got %q", received.Kind)
	}
	if received.FeatureID != "f1" || received.Project != "web" {
		t.Errorf("unexpected feature reference: %+v", received)
	}
}

func TestWebhook_SendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	if err := NewWebhook(server.URL).Send(context.Background(), authNotice()); err == nil {
		t.Error("expected error for 400 response")
	}
}

func TestSlack_Send(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewSlack(server.URL).Send(context.Background(), authNotice()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, _ := received["text"].(string)
	if !strings.Contains(text, ":rotating_light:") || !strings.Contains(text, "Login") {
		t.Errorf("unexpected text: %q", text)
	}
	blocks, _ := received["blocks"].([]any)
	if len(blocks) != 2 {
		t.Errorf("expected section and context blocks, got %d", len(blocks))
	}
}

type mockSender struct {
	name  string
	err   error
	calls int32
}

func (m *mockSender) Send(ctx context.Context, n reconciler.Notification) error {
	atomic.AddInt32(&m.calls, 1)
	return m.err
}

func (m *mockSender) Name() string { return m.name }

func TestMulti_SendsToAll(t *testing.T) {
	a := &mockSender{name: "a"}
	b := &mockSender{name: "b", err: errors.New("b failed")}
	c := &mockSender{name: "c"}

	err := NewMulti(a, b, c).Send(context.Background(), authNotice())
	if err == nil || !strings.Contains(err.Error(), "b failed") {
		t.Errorf("expected b's error, got %v", err)
	}
	for _, m := range []*mockSender{a, b, c} {
		if atomic.LoadInt32(&m.calls) != 1 {
			t.Errorf("%s: expected 1 call, got %d", m.name, m.calls)
		}
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.NotifyConfig
		want    string
		wantErr bool
	}{
		{"empty", config.NotifyConfig{}, "terminal", false},
		{"terminal", config.NotifyConfig{Backends: []string{"terminal"}}, "terminal", false},
		{"slack", config.NotifyConfig{Backends: []string{"slack"}, SlackWebhook: "https://hooks.slack.com/services/x"}, "slack", false},
		{"slack missing url", config.NotifyConfig{Backends: []string{"slack"}}, "", true},
		{"webhook missing url", config.NotifyConfig{Backends: []string{"webhook"}}, "", true},
		{"multi", config.NotifyConfig{Backends: []string{"terminal", "webhook"}, WebhookURL: "http://x"}, "multi", false},
		{"unknown", config.NotifyConfig{Backends: []string{"pager"}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromConfig(tt.cfg, &bytes.Buffer{}, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Name() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, s.Name())
			}
		})
	}
}

func TestForward(t *testing.T) {
	ch := make(chan reconciler.Notification, 2)
	m := &mockSender{name: "mock", err: errors.New("down")}

	ch <- authNotice()
	ch <- authNotice()
	close(ch)

	done := make(chan struct{})
	go func() {
		Forward(context.Background(), ch, m, logr.Discard())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward did not return after channel closed")
	}
	if atomic.LoadInt32(&m.calls) != 2 {
		t.Errorf("expected 2 sends despite errors, got %d", m.calls)
	}
}
