package handlers

import (
	"time"

	"cloud-indexer/internal/engine"
	"cloud-indexer/internal/registry"
)

// Handlers carries the dependencies the management API needs.
type Handlers struct {
	registry  *registry.Registry
	engine    *engine.Engine
	startTime time.Time
}

// New creates the handler set.
func New(reg *registry.Registry, eng *engine.Engine) *Handlers {
	return &Handlers{
		registry:  reg,
		engine:    eng,
		startTime: time.Now(),
	}
}
