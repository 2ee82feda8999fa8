package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the lifecycle engine.
const (
	EventTypeCommandStarted   = "command.started"
	EventTypeCommandCompleted = "command.completed"
	EventTypeCommandFailed    = "command.failed"
	EventTypeStepStarted      = "step.started"
	EventTypeStepFinished     = "step.finished"
	EventTypeStateChanged     = "environment.state_changed"
	EventTypePolicyDenied     = "policy.denied"
)

// Event levels.
const (
	EventLevelInfo  = "info"
	EventLevelWarn  = "warn"
	EventLevelError = "error"
)

// Event is one lifecycle occurrence published to subscribers.
type Event struct {
	// ID uniquely identifies the event.
	ID string

	// Type is one of the EventType constants.
	Type string

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// Environment is the target environment name.
	Environment string

	// Verb is the lifecycle verb being executed, if any.
	Verb string

	// Step is the step the event concerns, if any.
	Step string

	// Level is the event severity.
	Level string

	// Message is a human-readable description.
	Message string

	// Data carries event-specific details.
	Data map[string]interface{}
}

// EventSubscriber receives published events.
type EventSubscriber func(event Event)

// EventFilter decides whether a subscriber sees an event.
type EventFilter func(event Event) bool

// EventPublisher fans lifecycle events out to subscribers through a
// bounded buffer. A full buffer drops the event rather than block the
// engine.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given
// configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("event buffer size must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	ep.wg.Add(1)
	go ep.processEvents()

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	select {
	case ep.buffer <- event:
		return nil
	case <-ep.ctx.Done():
		return fmt.Errorf("event publisher stopped")
	default:
		return fmt.Errorf("event buffer full, event dropped")
	}
}

// PublishCommandStarted publishes a command started event.
func (ep *EventPublisher) PublishCommandStarted(environment, verb string) error {
	return ep.Publish(Event{
		Type:        EventTypeCommandStarted,
		Environment: environment,
		Verb:        verb,
		Message:     fmt.Sprintf("%s started on %s", verb, environment),
	})
}

// PublishCommandCompleted publishes a command completed event.
func (ep *EventPublisher) PublishCommandCompleted(environment, verb string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:        EventTypeCommandCompleted,
		Environment: environment,
		Verb:        verb,
		Message:     fmt.Sprintf("%s completed on %s", verb, environment),
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishCommandFailed publishes a command failed event.
func (ep *EventPublisher) PublishCommandFailed(environment, verb, reason string) error {
	return ep.Publish(Event{
		Type:        EventTypeCommandFailed,
		Environment: environment,
		Verb:        verb,
		Level:       EventLevelError,
		Message:     fmt.Sprintf("%s failed on %s: %s", verb, environment, reason),
	})
}

// PublishStepStarted publishes a step started event.
func (ep *EventPublisher) PublishStepStarted(environment, verb, step string) error {
	return ep.Publish(Event{
		Type:        EventTypeStepStarted,
		Environment: environment,
		Verb:        verb,
		Step:        step,
		Message:     fmt.Sprintf("step %s started", step),
	})
}

// PublishStepFinished publishes a step finished event.
func (ep *EventPublisher) PublishStepFinished(environment, verb, step, outcome string) error {
	level := EventLevelInfo
	if outcome == "failure" {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:        EventTypeStepFinished,
		Environment: environment,
		Verb:        verb,
		Step:        step,
		Level:       level,
		Message:     fmt.Sprintf("step %s finished: %s", step, outcome),
		Data: map[string]interface{}{
			"outcome": outcome,
		},
	})
}

// PublishStateChanged publishes an environment state transition event.
func (ep *EventPublisher) PublishStateChanged(environment, oldState, newState string) error {
	return ep.Publish(Event{
		Type:        EventTypeStateChanged,
		Environment: environment,
		Message:     fmt.Sprintf("%s transitioned %s -> %s", environment, oldState, newState),
		Data: map[string]interface{}{
			"old_state": oldState,
			"new_state": newState,
		},
	})
}

// PublishPolicyDenied publishes a policy denial event.
func (ep *EventPublisher) PublishPolicyDenied(environment, verb, reason string) error {
	return ep.Publish(Event{
		Type:        EventTypePolicyDenied,
		Environment: environment,
		Verb:        verb,
		Level:       EventLevelWarn,
		Message:     fmt.Sprintf("%s denied on %s: %s", verb, environment, reason),
	})
}

// Subscribe registers a subscriber with an optional filter.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()
	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			// Drain what is already buffered.
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	subscribers := make([]subscriberEntry, len(ep.subscribers))
	copy(subscribers, ep.subscribers)
	ep.mu.RUnlock()

	for _, entry := range subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		// A panicking subscriber must not take the engine down.
		func() {
			defer func() { _ = recover() }()
			entry.subscriber(event)
		}()
	}
}

// Shutdown stops the publisher and delivers buffered events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled || ep.cancel == nil {
		return nil
	}
	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FilterByType keeps only events of the given types.
func FilterByType(types ...string) EventFilter {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return func(event Event) bool {
		return allowed[event.Type]
	}
}

// FilterByEnvironment keeps only events for one environment.
func FilterByEnvironment(name string) EventFilter {
	return func(event Event) bool {
		return event.Environment == name
	}
}
