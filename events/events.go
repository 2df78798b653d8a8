package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChanged  EventType = "balance_changed"
	EventTypeItemPurchased   EventType = "item_purchased"
	EventTypeGiveawayEnded   EventType = "giveaway_ended"
	EventTypeCountMilestone  EventType = "count_milestone"
	EventTypeMuteExpired     EventType = "mute_expired"
	EventTypeCooldownElapsed EventType = "cooldown_elapsed"
	EventTypeSessionFinished EventType = "session_finished"
)

// AllTypes returns every event type the bus can carry.
func AllTypes() []EventType {
	return []EventType{
		EventTypeBalanceChanged,
		EventTypeItemPurchased,
		EventTypeGiveawayEnded,
		EventTypeCountMilestone,
		EventTypeMuteExpired,
		EventTypeCooldownElapsed,
		EventTypeSessionFinished,
	}
}

// Reasons a balance changed.
const (
	ReasonDaily    = "daily"
	ReasonWork     = "work"
	ReasonGamble   = "gamble"
	ReasonTransfer = "transfer"
	ReasonPurchase = "purchase"
	ReasonLootbox  = "lootbox"
	ReasonAdmin    = "admin"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangedEvent represents a balance change that occurred
type BalanceChangedEvent struct {
	GuildID    int64  `json:"guild_id"`
	UserID     int64  `json:"user_id"`
	OldBalance int64  `json:"old_balance"`
	NewBalance int64  `json:"new_balance"`
	Reason     string `json:"reason"`
}

func (e BalanceChangedEvent) Type() EventType {
	return EventTypeBalanceChanged
}

// ItemPurchasedEvent represents a shop purchase
type ItemPurchasedEvent struct {
	GuildID int64  `json:"guild_id"`
	UserID  int64  `json:"user_id"`
	ItemID  string `json:"item_id"`
	Price   int64  `json:"price"`
}

func (e ItemPurchasedEvent) Type() EventType {
	return EventTypeItemPurchased
}

// GiveawayEndedEvent represents a giveaway that was drawn
type GiveawayEndedEvent struct {
	GuildID   int64   `json:"guild_id"`
	ChannelID int64   `json:"channel_id"`
	MessageID int64   `json:"message_id"`
	Prize     string  `json:"prize"`
	Winners   []int64 `json:"winners"`
	Rerolled  bool    `json:"rerolled"`
}

func (e GiveawayEndedEvent) Type() EventType {
	return EventTypeGiveawayEnded
}

// CountMilestoneEvent represents a counting chain reaching a milestone
type CountMilestoneEvent struct {
	GuildID      int64 `json:"guild_id"`
	ChannelID    int64 `json:"channel_id"`
	UserID       int64 `json:"user_id"`
	Count        int64 `json:"count"`
	NewHighScore bool  `json:"new_high_score"`
}

func (e CountMilestoneEvent) Type() EventType {
	return EventTypeCountMilestone
}

// MuteExpiredEvent represents a temporary mute reaching its expiry
type MuteExpiredEvent struct {
	GuildID int64 `json:"guild_id"`
	UserID  int64 `json:"user_id"`
}

func (e MuteExpiredEvent) Type() EventType {
	return EventTypeMuteExpired
}

// CooldownElapsedEvent represents a claim cooldown becoming available again
type CooldownElapsedEvent struct {
	GuildID int64  `json:"guild_id"`
	UserID  int64  `json:"user_id"`
	Claim   string `json:"claim"` // "daily" or "work"
}

func (e CooldownElapsedEvent) Type() EventType {
	return EventTypeCooldownElapsed
}

// SessionFinishedEvent represents a game session reaching a terminal state
type SessionFinishedEvent struct {
	GuildID   int64  `json:"guild_id"`
	ChannelID int64  `json:"channel_id"`
	Variant   string `json:"variant"`
	WinnerID  int64  `json:"winner_id,omitempty"`
	Draw      bool   `json:"draw,omitempty"`
}

func (e SessionFinishedEvent) Type() EventType {
	return EventTypeSessionFinished
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// PendingBus stashes events raised inside a store mutation until the write
// commits. Flush after a successful commit; Discard after a failed one so
// observers never hear about state that was not persisted.
type PendingBus struct {
	real    *Bus
	pending []Event
}

func NewPendingBus(real *Bus) *PendingBus {
	return &PendingBus{real: real}
}

func (b *PendingBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits every stashed event on the real bus, in publish order.
func (b *PendingBus) Flush(ctx context.Context) {
	// Events outlive the mutation that raised them, so emission uses a
	// fresh context rather than the (possibly expired) request context.
	eventCtx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard drops every stashed event.
func (b *PendingBus) Discard() {
	b.pending = nil
}
