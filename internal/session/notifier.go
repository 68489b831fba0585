package session

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// User facing messages.
const (
	MsgLoggedOut          = "Logged out"
	MsgLogoutNotifyFailed = "Failed to notify server about logout"
	MsgSessionExpired     = "Session expired, please log in again"
	MsgSessionInvalid     = "Session is no longer valid, please log in again"
	MsgProfileCorrupt     = "Failed to parse user from storage"
)

func welcomeBack(name string) string {
	return fmt.Sprintf("Welcome back, %s", name)
}

func registered(name string) string {
	return fmt.Sprintf("Registration successful, welcome %s", name)
}

// Notifier receives user facing messages. The Manager never waits on it or
// depends on its outcome, and never calls it while holding its lock.
type Notifier interface {
	Success(msg string)
	Warning(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to the global zerolog logger.
type LogNotifier struct{}

func (LogNotifier) Success(msg string) { log.Info().Str("notice", "success").Msg(msg) }
func (LogNotifier) Warning(msg string) { log.Warn().Str("notice", "warning").Msg(msg) }
func (LogNotifier) Error(msg string)   { log.Error().Str("notice", "error").Msg(msg) }

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Warning(string) {}
func (NopNotifier) Error(string)   {}

type level int

const (
	levelSuccess level = iota
	levelWarning
	levelError
)

type notice struct {
	level level
	msg   string
}

// queue records a notice to be delivered by the next flush. It is safe to call
// with m.mu held.
func (m *Manager) queue(lvl level, msg string) {
	m.noticeMu.Lock()
	m.pending = append(m.pending, notice{level: lvl, msg: msg})
	m.noticeMu.Unlock()
}

// flush delivers queued notices. It must be called without m.mu held so a
// Notifier can safely read the session.
func (m *Manager) flush() {
	m.noticeMu.Lock()
	pending := m.pending
	m.pending = nil
	m.noticeMu.Unlock()

	for _, n := range pending {
		switch n.level {
		case levelSuccess:
			m.notifier.Success(n.msg)
		case levelWarning:
			m.notifier.Warning(n.msg)
		default:
			m.notifier.Error(n.msg)
		}
	}
}
