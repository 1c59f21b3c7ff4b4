package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DispatchState tracks a single stage invocation through its lifecycle.
type DispatchState string

const (
	StatePending   DispatchState = "pending"
	StateRunning   DispatchState = "running"
	StateBlocked   DispatchState = "blocked"
	StateCompleted DispatchState = "completed"
)

// Handler processes one stage payload. A nil result means no effect; a
// returned error terminates the stage. Handlers wrap their own backend
// failures into either no effect or a block directive before returning, the
// dispatcher does not catch on their behalf.
type Handler interface {
	Name() string
	Handle(ctx context.Context, payload StagePayload) (*HandlerResult, error)
}

// HandlerFunc adapts a named function to the Handler interface.
type HandlerFunc struct {
	HandlerName string
	Func        func(ctx context.Context, payload StagePayload) (*HandlerResult, error)
}

func (f HandlerFunc) Name() string { return f.HandlerName }

func (f HandlerFunc) Handle(ctx context.Context, payload StagePayload) (*HandlerResult, error) {
	return f.Func(ctx, payload)
}

// Outcome is the terminal result of dispatching one stage.
type Outcome struct {
	State   DispatchState
	Payload StagePayload
	// Block holds the block directive when State is StateBlocked.
	Block *HandlerResult
	// BlockedBy names the handler that blocked the stage.
	BlockedBy string
}

// Err returns a BlockedError when the stage was blocked, nil otherwise.
func (o Outcome) Err() error {
	if o.State != StateBlocked || o.Block == nil {
		return nil
	}
	message := o.Block.BlockResponse
	if message == "" {
		message = o.Block.BlockReason
	}
	return NewBlockedError(o.BlockedBy, o.Payload.Stage(), message)
}

type registration struct {
	handler  Handler
	priority int
	seq      int
}

// Dispatcher routes stage payloads through registered handlers. Handlers for
// a stage run sequentially in descending priority order (ties broken by
// registration order) so each handler observes the mutations of every
// higher-priority handler, and a block prevents all lower-priority handlers
// from running. Separate Dispatch calls are independent and may run
// concurrently.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Stage][]registration
	seq      int
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Stage][]registration),
		logger:   slog.Default(),
	}
}

// WithTracer sets the OpenTelemetry tracer for the dispatcher.
func (d *Dispatcher) WithTracer(tracer trace.Tracer) *Dispatcher {
	d.tracer = tracer
	return d
}

// WithLogger sets the logger for the dispatcher.
func (d *Dispatcher) WithLogger(logger *slog.Logger) *Dispatcher {
	d.logger = logger
	return d
}

// Register adds a handler for one stage at the given priority. Higher
// priority runs earlier.
func (d *Dispatcher) Register(stage Stage, priority int, handler Handler) error {
	if !stage.Valid() {
		return fmt.Errorf("cannot register handler %q: unknown stage %q", handler.Name(), stage)
	}
	if handler == nil {
		return fmt.Errorf("cannot register nil handler for stage %q", stage)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	regs := append(d.handlers[stage], registration{
		handler:  handler,
		priority: priority,
		seq:      d.seq,
	})
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority > regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})
	d.handlers[stage] = regs
	return nil
}

// Handlers returns the handlers registered for a stage in execution order.
func (d *Dispatcher) Handlers(stage Stage) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()

	regs := d.handlers[stage]
	result := make([]Handler, len(regs))
	for i, reg := range regs {
		result[i] = reg.handler
	}
	return result
}

// Dispatch runs every handler registered for the payload's stage.
// - On a block directive: stop, no lower-priority handler runs.
// - On a mutation: merge it into the working payload for the next handler.
// - On nil: continue unchanged.
// A cancelled context abandons the stage; the partial payload is discarded
// by the caller and no terminal state is reached.
func (d *Dispatcher) Dispatch(ctx context.Context, payload StagePayload) (Outcome, error) {
	stage := payload.Stage()

	d.mu.RLock()
	regs := make([]registration, len(d.handlers[stage]))
	copy(regs, d.handlers[stage])
	d.mu.RUnlock()

	current := payload
	state := StatePending

	for _, reg := range regs {
		if err := ctx.Err(); err != nil {
			return Outcome{State: state, Payload: current}, err
		}
		state = StateRunning

		var span trace.Span
		handlerCtx := ctx
		if d.tracer != nil {
			handlerCtx, span = d.tracer.Start(ctx, "guardrail.dispatch",
				trace.WithAttributes(
					attribute.String("guardrail.name", reg.handler.Name()),
					attribute.String("guardrail.stage", string(stage)),
				),
			)
		}

		result, err := reg.handler.Handle(handlerCtx, current)
		if span != nil {
			span.SetAttributes(attribute.Bool("guardrail.blocked", result != nil && result.Block))
			span.End()
		}

		if err != nil {
			return Outcome{State: StateRunning, Payload: current}, err
		}

		if result.Empty() {
			continue
		}

		if result.Block {
			d.logger.InfoContext(ctx, "guardrail blocked stage",
				"guardrail", reg.handler.Name(),
				"stage", stage,
			)
			return Outcome{
				State:     StateBlocked,
				Payload:   current,
				Block:     result,
				BlockedBy: reg.handler.Name(),
			}, nil
		}

		current = ApplyMutation(current, result)
		d.logger.DebugContext(ctx, "guardrail mutated payload",
			"guardrail", reg.handler.Name(),
			"stage", stage,
		)
	}

	return Outcome{State: StateCompleted, Payload: current}, nil
}
