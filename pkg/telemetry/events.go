package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a compilation event.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// CompilationID is the associated compilation, if any.
	CompilationID string `json:"compilation_id,omitempty"`

	// Resource is the associated Type['title'] reference, if any.
	Resource string `json:"resource,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeCompilationStarted   = "compilation.started"
	EventTypeCompilationCompleted = "compilation.completed"
	EventTypeCompilationFailed    = "compilation.failed"
	EventTypeSingletonDeclared    = "singleton.declared"
	EventTypeSingletonFailed      = "singleton.failed"
	EventTypePolicyViolation      = "policy.violation"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers. Synchronous publishers
// deliver on the publishing goroutine, in order.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a publisher.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	if !cfg.Enabled {
		return ep, nil
	}

	if cfg.EnableAsync {
		if cfg.BufferSize <= 0 {
			cancel()
			return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
		}
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
		}
		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishCompilationStarted publishes a compilation started event.
func (ep *EventPublisher) PublishCompilationStarted(compilationID, manifest string) error {
	return ep.Publish(Event{
		Type:          EventTypeCompilationStarted,
		Source:        "compiler",
		CompilationID: compilationID,
		Message:       fmt.Sprintf("Compiling %s", manifest),
		Data:          map[string]interface{}{"manifest": manifest},
	})
}

// PublishCompilationCompleted publishes a compilation completed event.
func (ep *EventPublisher) PublishCompilationCompleted(compilationID string, resources int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:          EventTypeCompilationCompleted,
		Source:        "compiler",
		CompilationID: compilationID,
		Message:       fmt.Sprintf("Compiled %d resources in %s", resources, duration),
		Data: map[string]interface{}{
			"resources":   resources,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// PublishCompilationFailed publishes a compilation failed event.
func (ep *EventPublisher) PublishCompilationFailed(compilationID, reason string) error {
	return ep.Publish(Event{
		Type:          EventTypeCompilationFailed,
		Source:        "compiler",
		CompilationID: compilationID,
		Message:       reason,
		Level:         EventLevelError,
	})
}

// PublishDeclaration publishes a singleton declaration event.
func (ep *EventPublisher) PublishDeclaration(compilationID, resource, flavor string, depth int) error {
	return ep.Publish(Event{
		Type:          EventTypeSingletonDeclared,
		Source:        "singleton",
		CompilationID: compilationID,
		Resource:      resource,
		Message:       fmt.Sprintf("Declared %s", resource),
		Data: map[string]interface{}{
			"flavor": flavor,
			"depth":  depth,
		},
	})
}

// PublishItemFailed publishes a per-item singleton error.
func (ep *EventPublisher) PublishItemFailed(compilationID, input, code, reason string) error {
	return ep.Publish(Event{
		Type:          EventTypeSingletonFailed,
		Source:        "singleton",
		CompilationID: compilationID,
		Resource:      input,
		Message:       reason,
		Level:         EventLevelWarning,
		Data:          map[string]interface{}{"code": code},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(compilationID, resource, policyName, reason string) error {
	return ep.Publish(Event{
		Type:          EventTypePolicyViolation,
		Source:        "policy",
		CompilationID: compilationID,
		Resource:      resource,
		Message:       reason,
		Level:         EventLevelWarning,
		Data:          map[string]interface{}{"policy": policyName},
	})
}

// Subscribe registers a subscriber. A nil filter receives every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
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
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown drains buffered events and stops the publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
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
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel allows events of minLevel or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}
	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType allows events of the given types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}
	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByCompilation allows events of one compilation.
func FilterByCompilation(compilationID string) EventFilter {
	return func(event Event) bool {
		return event.CompilationID == compilationID
	}
}
