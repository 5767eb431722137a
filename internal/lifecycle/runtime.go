package lifecycle

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Component is anything with a managed start/stop lifetime: background
// sweepers, ticker workers, the metrics endpoint.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime owns the process's long-running components. Start order is
// registration order, stop order is the reverse.
type Runtime struct {
	components []Component
	logger     *log.Entry
}

func NewRuntime(components ...Component) *Runtime {
	return &Runtime{
		components: components,
		logger:     log.WithField("context", "lifecycle"),
	}
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, component)
}

// Start starts components in registration order, unwinding already-started
// ones on the first failure.
func (r *Runtime) Start(ctx context.Context) error {
	started := make([]Component, 0, len(r.components))
	for _, component := range r.components {
		if component == nil {
			continue
		}
		if err := component.Start(ctx); err != nil {
			r.stop(ctx, started)
			return pkgerrors.WithMessagef(err, "cant start %s", componentName(component))
		}
		r.logger.WithField("component", componentName(component)).Debug("started")
		started = append(started, component)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return r.stop(ctx, r.components)
}

func (r *Runtime) stop(ctx context.Context, components []Component) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		if component == nil {
			continue
		}
		if err := component.Stop(ctx); err != nil {
			r.logger.WithField("component", componentName(component)).WithError(err).Warn("stop failed")
			stopErr = errors.Join(stopErr, err)
			continue
		}
		r.logger.WithField("component", componentName(component)).Debug("stopped")
	}
	return stopErr
}

func componentName(c Component) string {
	return fmt.Sprintf("%T", c)
}
