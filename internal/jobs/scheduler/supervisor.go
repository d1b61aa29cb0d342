package scheduler

import (
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// NewSupervisor builds a suture supervisor whose events go to log.
func NewSupervisor(log *logger.Logger, name string, cfg TreeConfig) *suture.Supervisor {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	hookLog := log.With("component", "Supervisor", "supervisor", name)
	return suture.New(name, suture.Spec{
		EventHook:        eventHook(hookLog),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
}

func eventHook(log *logger.Logger) suture.EventHook {
	return func(e suture.Event) {
		kv := make([]interface{}, 0, 2*len(e.Map()))
		for k, v := range e.Map() {
			kv = append(kv, k, v)
		}
		switch e.Type() {
		case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate, suture.EventTypeBackoff:
			log.Warn(e.String(), kv...)
		default:
			log.Info(e.String(), kv...)
		}
	}
}
