package agent

import "github.com/hupe1980/reactmesh/logging"

// Router selects the next active agent of a run. It never touches the
// conversation memory.
type Router struct {
	base   *Descriptor
	logger logging.Logger
}

// NewRouter creates a router falling back to base.
func NewRouter(base *Descriptor, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Router{base: base, logger: logger}
}

// Base returns the agent the run started with.
func (r *Router) Base() *Descriptor { return r.base }

// Resolve returns the agent that is active after current selected a
// capability. A nil selection (no tool) or an unresolvable sub-agent reference
// returns the base agent; a sub-agent returns that agent; a tool keeps the
// current agent.
func (r *Router) Resolve(current *Descriptor, selected *Capability) *Descriptor {
	if selected == nil {
		return r.base
	}

	switch selected.Kind() {
	case CapabilitySubAgent:
		next, ok := selected.Agent()
		if !ok {
			r.logger.Warn("agent.handoff.unresolved", "from", current.Name(), "to", selected.Name())
			return r.base
		}

		r.logger.Debug("agent.handoff", "from", current.Name(), "to", next.Name())

		return next
	default:
		return current
	}
}
