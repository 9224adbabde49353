package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Channel names accepted in alerting.channels.
const (
	ChannelLog      = "log"
	ChannelTelegram = "telegram"
)

// Notification carries a control mode change worth telling an operator about.
type Notification struct {
	RunID         string
	Cycle         int64
	At            time.Time
	FromMode      string
	ToMode        string
	AngularRate   decimal.Decimal
	Lower         decimal.Decimal
	Upper         decimal.Decimal
	Max           decimal.Decimal
	Channels      []string
	AdditionalMsg string
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Router fans a notification out to the channels it names. A notification
// without channels goes to every registered route.
type Router struct {
	routes map[string]Notifier
	order  []string
	logger zerolog.Logger
}

// NewRouter returns an empty router.
func NewRouter(logger zerolog.Logger) *Router {
	return &Router{
		routes: make(map[string]Notifier),
		logger: logger.With().Str("component", "alert_router").Logger(),
	}
}

// Register adds or replaces the notifier for a channel.
func (r *Router) Register(channel string, n Notifier) {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if _, ok := r.routes[channel]; !ok {
		r.order = append(r.order, channel)
	}
	r.routes[channel] = n
}

// Channels lists registered channel names in registration order.
func (r *Router) Channels() []string {
	return append([]string(nil), r.order...)
}

// Notify delivers to each requested channel and joins the failures.
func (r *Router) Notify(ctx context.Context, note Notification) error {
	channels := note.Channels
	if len(channels) == 0 {
		channels = r.order
	}

	var errs []error
	for _, ch := range channels {
		ch = strings.ToLower(strings.TrimSpace(ch))
		n, ok := r.routes[ch]
		if !ok {
			r.logger.Warn().Str("channel", ch).Msg("no notifier registered for channel")
			continue
		}
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs at warn level when the spacecraft spins above Max, info otherwise.
func (n *LogNotifier) Notify(ctx context.Context, note Notification) error {
	event := n.logger.Info()
	if note.ToMode == "HYSTERESIS" {
		event = n.logger.Warn()
	}
	event.Str("run_id", note.RunID).
		Int64("cycle", note.Cycle).
		Str("from", note.FromMode).
		Str("to", note.ToMode).
		Str("rate", note.AngularRate.StringFixed(4)).
		Msg(headline(note))
	return nil
}

func headline(note Notification) string {
	switch note.ToMode {
	case "HYSTERESIS":
		return "spin rate above B-dot authority"
	case "IDLE":
		return "spacecraft detumbled"
	default:
		return "control mode changed"
	}
}

// RenderMessage formats a notification as plain text.
func RenderMessage(note Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Detumble Controller] %s\n", headline(note))
	fmt.Fprintf(&b, "Mode: %s -> %s\n", note.FromMode, note.ToMode)
	fmt.Fprintf(&b, "At: %s UTC (cycle %d)\n", note.At.UTC().Format(time.RFC3339), note.Cycle)
	fmt.Fprintf(&b, "Rate: %s rad/s\n", note.AngularRate.StringFixed(4))
	fmt.Fprintf(&b, "Thresholds: lower %s / upper %s / max %s\n",
		note.Lower.StringFixed(3), note.Upper.StringFixed(3), note.Max.StringFixed(3))
	if note.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", note.RunID)
	}
	if note.AdditionalMsg != "" {
		b.WriteString(note.AdditionalMsg)
	}
	return b.String()
}

var (
	_ Notifier = (*Router)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
