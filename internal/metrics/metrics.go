// Package metrics is the narrow observability boundary: the core
// reports room and connection lifecycle plus normalized errors, and
// the backend decides what to do with them.
package metrics

import "go.uber.org/zap"

type Reporter interface {
	RoomOpened()
	RoomClosed()
	PlayerConnected()
	PlayerDisconnected()
	ErrorEmitted(code string)
}

// Nop discards every report.
type Nop struct{}

func (Nop) RoomOpened()         {}
func (Nop) RoomClosed()         {}
func (Nop) PlayerConnected()    {}
func (Nop) PlayerDisconnected() {}
func (Nop) ErrorEmitted(string) {}

// Logging is the default backend: counters surfaced as log fields.
type Logging struct {
	log *zap.Logger
}

func NewLogging(log *zap.Logger) *Logging {
	return &Logging{log: log.Named("metrics")}
}

func (l *Logging) RoomOpened()         { l.log.Debug("room opened") }
func (l *Logging) RoomClosed()         { l.log.Debug("room closed") }
func (l *Logging) PlayerConnected()    { l.log.Debug("player connected") }
func (l *Logging) PlayerDisconnected() { l.log.Debug("player disconnected") }
func (l *Logging) ErrorEmitted(code string) {
	l.log.Debug("error emitted", zap.String("code", code))
}
