package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventAnalysisCompleted  EventType = "ANALYSIS_COMPLETED"
	EventAlertGenerated     EventType = "ALERT_GENERATED"
	EventConfluenceDetected EventType = "CONFLUENCE_DETECTED"
	EventRegimeChanged      EventType = "REGIME_CHANGED"
	EventOutcomeRecorded    EventType = "OUTCOME_RECORDED"
	EventThresholdAdjusted  EventType = "THRESHOLD_ADJUSTED"
	EventLearningReset      EventType = "LEARNING_RESET"
	EventError              EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Delivery is asynchronous so a
// slow subscriber never blocks the analysis path.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishAnalysis publishes an analysis completed event
func (eb *EventBus) PublishAnalysis(symbol, regime string, candidates, alerts int, elapsed time.Duration) {
	eb.Publish(Event{
		Type: EventAnalysisCompleted,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"regime":     regime,
			"candidates": candidates,
			"alerts":     alerts,
			"elapsed_ms": elapsed.Milliseconds(),
		},
	})
}

// PublishAlert publishes an alert generated event
func (eb *EventBus) PublishAlert(symbol, patternType, direction, urgency string, confidence float64) {
	eb.Publish(Event{
		Type: EventAlertGenerated,
		Data: map[string]interface{}{
			"symbol":       symbol,
			"pattern_type": patternType,
			"direction":    direction,
			"urgency":      urgency,
			"confidence":   confidence,
		},
	})
}

// PublishConfluence publishes a confluence detected event
func (eb *EventBus) PublishConfluence(symbol, patternType, direction string, timeframes int, confidence float64) {
	eb.Publish(Event{
		Type: EventConfluenceDetected,
		Data: map[string]interface{}{
			"symbol":       symbol,
			"pattern_type": patternType,
			"direction":    direction,
			"timeframes":   timeframes,
			"confidence":   confidence,
		},
	})
}

// PublishRegimeChanged publishes a regime transition event
func (eb *EventBus) PublishRegimeChanged(symbol, previous, current string) {
	eb.Publish(Event{
		Type: EventRegimeChanged,
		Data: map[string]interface{}{
			"symbol":   symbol,
			"previous": previous,
			"current":  current,
		},
	})
}

// PublishOutcome publishes an outcome recorded event
func (eb *EventBus) PublishOutcome(patternType, regime string, success bool, threshold float64) {
	eb.Publish(Event{
		Type: EventOutcomeRecorded,
		Data: map[string]interface{}{
			"pattern_type": patternType,
			"regime":       regime,
			"success":      success,
			"threshold":    threshold,
		},
	})
}

// PublishThresholdAdjusted publishes an adaptive threshold move
func (eb *EventBus) PublishThresholdAdjusted(patternType string, previous, current float64) {
	eb.Publish(Event{
		Type: EventThresholdAdjusted,
		Data: map[string]interface{}{
			"pattern_type": patternType,
			"previous":     previous,
			"current":      current,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
