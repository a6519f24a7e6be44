// Package admin implements the out-of-band admin channel: a single
// operator QQ can mute/unmute the whole bot via a private message, and the
// runtime can push rate-limited alert notifications back to that operator
// through the same gateway every other outbound reply uses.
package admin

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/askr-bot/askr/internal/config"
	"github.com/askr-bot/askr/internal/eventkind"
	"github.com/askr-bot/askr/internal/logger"
	"github.com/rs/zerolog"
)

// Sender is the minimal surface the channel needs to deliver a
// notification — satisfied by *gateway.Client.
type Sender interface {
	Send(action string, body map[string]any)
}

// Channel owns the mute flag and the rate-limited notification path.
type Channel struct {
	cfg    config.Admin
	sender Sender

	muted atomic.Bool

	mu       sync.Mutex
	inFlight bool
	lastSeen map[string]time.Time
}

// New builds a Channel. sender may be nil if notifications are disabled;
// Dispatch still handles mute/unmute in that case.
func New(cfg config.Admin, sender Sender) *Channel {
	return &Channel{
		cfg:      cfg,
		sender:   sender,
		lastSeen: make(map[string]time.Time),
	}
}

// Muted reports whether the bot is currently muted.
func (c *Channel) Muted() bool {
	return c.muted.Load()
}

// Dispatch inspects raw for the admin's mute/unmute command. It returns
// true if the event was an admin command and has already been fully
// handled — callers must short-circuit normal plugin dispatch for it.
func (c *Channel) Dispatch(raw eventkind.RawEvent) bool {
	if c.cfg.AdminID == 0 {
		return false
	}
	if str(raw["post_type"]) != "message" || str(raw["message_type"]) != "private" {
		return false
	}
	if !sameID(raw["user_id"], c.cfg.AdminID) {
		return false
	}

	switch strings.TrimSpace(str(raw["raw_message"])) {
	case "mute":
		c.muted.Store(true)
		logger.Admin().Info().Int64("admin_id", c.cfg.AdminID).Msg("admin activated mute mode")
		return true
	case "unmute":
		c.muted.Store(false)
		logger.Admin().Info().Int64("admin_id", c.cfg.AdminID).Msg("admin deactivated mute mode")
		return true
	}

	return false
}

// Notify sends level/message to the admin, subject to the enabled flag,
// the level threshold, a reentrancy guard (a notification attempt never
// triggers another while in flight), and per-message-hash rate limiting.
// It never blocks the caller for longer than the gateway send itself takes
// and never panics back into the logger that invoked it.
func (c *Channel) Notify(level, message string) {
	if !c.cfg.Enabled || c.cfg.AdminID == 0 || c.sender == nil {
		return
	}
	if !levelMeets(level, c.cfg.NotifyLevel) {
		return
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	hash := messageHash(message)
	rateLimit := time.Duration(c.cfg.RateLimitSeconds) * time.Second
	if last, ok := c.lastSeen[hash]; ok && time.Since(last) < rateLimit {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	text := formatMessage(c.cfg.MessageFormat, level, message)
	defer func() {
		// A notification send must never itself crash the process that
		// triggered it by logging an error.
		_ = recover()
	}()
	c.sender.Send("send_private_msg", map[string]any{
		"user_id": c.cfg.AdminID,
		"message": []any{map[string]any{"type": "text", "data": map[string]any{"text": text}}},
	})

	c.mu.Lock()
	c.lastSeen[hash] = time.Now()
	c.mu.Unlock()
}

// Hook returns a zerolog.Hook that forwards every log line at or above the
// configured notify level to Notify, the Go equivalent of monkey-patching
// the logging module — every such log line anywhere in the process
// becomes a candidate admin notification without each call site knowing
// about the admin channel.
func (c *Channel) Hook() zerolog.Hook {
	return zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, message string) {
		if level == zerolog.NoLevel {
			return
		}
		c.Notify(level.String(), message)
	})
}

var levelOrder = map[string]int{
	"debug": 10, "info": 20, "warn": 30, "warning": 30, "error": 40, "fatal": 50, "panic": 50,
}

func levelMeets(level, threshold string) bool {
	lv, lok := levelOrder[strings.ToLower(level)]
	tv, tok := levelOrder[strings.ToLower(threshold)]
	if !lok {
		lv = 0
	}
	if !tok {
		tv = 40
	}
	return lv >= tv
}

func messageHash(message string) string {
	sum := md5.Sum([]byte(message))
	return hex.EncodeToString(sum[:])[:8]
}

func formatMessage(format, level, message string) string {
	if format == "" {
		format = "Alert\n[{level}] {time}\n{message}"
	}
	r := strings.NewReplacer(
		"{level}", level,
		"{time}", time.Now().Format("2006-01-02 15:04:05"),
		"{message}", message,
	)
	return r.Replace(format)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func sameID(v any, id int64) bool {
	switch n := v.(type) {
	case float64:
		return int64(n) == id
	case int64:
		return n == id
	case int:
		return int64(n) == id
	case string:
		return n == fmt.Sprintf("%d", id)
	default:
		return false
	}
}
