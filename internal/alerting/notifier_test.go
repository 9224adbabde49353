package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testNotification() Notification {
	return Notification{
		RunID:       "run-1",
		Cycle:       42,
		At:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		FromMode:    "BDOT",
		ToMode:      "HYSTERESIS",
		AngularRate: decimal.NewFromFloat(0.61),
		Lower:       decimal.NewFromFloat(0.02),
		Upper:       decimal.NewFromFloat(0.05),
		Max:         decimal.NewFromFloat(0.5),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]any)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/bottoken/sendMessage") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	text, _ := received["text"].(string)
	if !strings.Contains(text, "BDOT -> HYSTERESIS") {
		t.Fatalf("text should name the transition: %q", text)
	}
	if received["disable_notification"] != false {
		t.Fatalf("spin-up alerts must not be silent: %#v", received)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"ok false": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
			if err := notifier.Notify(context.Background(), testNotification()); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestRenderMessage(t *testing.T) {
	msg := RenderMessage(testNotification())
	for _, want := range []string{"above B-dot authority", "cycle 42", "0.6100 rad/s", "max 0.500", "Run: run-1"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}

	note := testNotification()
	note.ToMode = "IDLE"
	if !strings.Contains(RenderMessage(note), "detumbled") {
		t.Fatal("IDLE transitions should read as detumbled")
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(ctx context.Context, n Notification) error {
	c.calls++
	return c.err
}

func TestRouterDispatchesByChannel(t *testing.T) {
	logCh := &countingNotifier{}
	tg := &countingNotifier{err: errors.New("boom")}

	r := NewRouter(zerolog.Nop())
	r.Register(ChannelLog, logCh)
	r.Register(" Telegram ", tg)

	if got := r.Channels(); len(got) != 2 || got[1] != ChannelTelegram {
		t.Fatalf("unexpected channels %v", got)
	}

	note := testNotification()
	note.Channels = []string{"log"}
	if err := r.Notify(context.Background(), note); err != nil {
		t.Fatalf("log channel should succeed: %v", err)
	}
	if logCh.calls != 1 || tg.calls != 0 {
		t.Fatalf("only the log channel should be called: log=%d telegram=%d", logCh.calls, tg.calls)
	}

	note.Channels = nil
	err := r.Notify(context.Background(), note)
	if err == nil || !strings.Contains(err.Error(), "telegram: boom") {
		t.Fatalf("expected joined telegram error, got %v", err)
	}
	if logCh.calls != 2 || tg.calls != 1 {
		t.Fatalf("every route should be called: log=%d telegram=%d", logCh.calls, tg.calls)
	}

	note.Channels = []string{"pager"}
	if err := r.Notify(context.Background(), note); err != nil {
		t.Fatalf("unknown channels are skipped: %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier(zerolog.Nop()).Notify(context.Background(), testNotification()); err != nil {
		t.Fatal(err)
	}
}
