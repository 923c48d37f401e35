package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Board owns the cards, their positions, the connections between them and
// the in-flight pending connection. Every mutation goes through it and is
// written to the store before subscribers are told about it.
//
// A Board is driven from a single goroutine and does no locking.
type Board struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
	newID func() string

	cards       []Card
	positions   map[string]Position
	connections []Connection
	pending     *PendingConnection

	observers    map[int]func(Event)
	nextObserver int

	err error
}

type BoardOption func(*Board)

func WithLogger(l *zap.Logger) BoardOption {
	return func(b *Board) {
		if l != nil {
			b.log = l
		}
	}
}

func WithClock(now func() time.Time) BoardOption {
	return func(b *Board) { b.now = now }
}

func WithIDGenerator(gen func() string) BoardOption {
	return func(b *Board) { b.newID = gen }
}

func NewBoard(store Store, opts ...BoardOption) *Board {
	b := &Board{
		store:     store,
		log:       zap.NewNop(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		positions: make(map[string]Position),
		observers: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load replaces the in-memory state with what the store holds. Missing or
// unreadable collections come back empty, and anything that points at a card
// that no longer exists is dropped.
func (b *Board) Load() {
	ctx := context.Background()

	var cards []Card
	var positions map[string]Position
	var connections []Connection
	b.loadKey(ctx, keyCards, &cards)
	b.loadKey(ctx, keyPositions, &positions)
	b.loadKey(ctx, keyConnections, &connections)

	b.cards, b.positions, b.connections = b.reconcile(cards, positions, connections)
	b.pending = nil
	b.emit(Event{Kind: EventLoaded, Index: -1})
}

func (b *Board) loadKey(ctx context.Context, key string, v any) {
	if b.store == nil {
		return
	}
	data, err := b.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.log.Warn("reading collection failed, starting empty", zap.String("key", key), zap.Error(err))
		}
		return
	}
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		b.log.Warn("malformed collection, starting empty", zap.String("key", key), zap.Error(err))
	}
}

func (b *Board) reconcile(cards []Card, positions map[string]Position, connections []Connection) ([]Card, map[string]Position, []Connection) {
	known := make(map[string]bool, len(cards))
	keptCards := make([]Card, 0, len(cards))
	for _, c := range cards {
		if c.ID == "" || known[c.ID] {
			b.log.Debug("dropping card with empty or duplicate id", zap.String("card", c.ID))
			continue
		}
		known[c.ID] = true
		c.Color = NormalizeColor(c.Color)
		keptCards = append(keptCards, c)
	}

	keptPositions := make(map[string]Position, len(positions))
	for id, p := range positions {
		if !known[id] {
			b.log.Debug("dropping position of missing card", zap.String("card", id))
			continue
		}
		keptPositions[id] = p
	}

	keptConnections := make([]Connection, 0, len(connections))
	for _, c := range connections {
		switch {
		case !known[c.StartCard] || !known[c.EndCard]:
			b.log.Debug("dropping connection to missing card", zap.String("start", c.StartCard), zap.String("end", c.EndCard))
			continue
		case !c.StartAnchor.Valid() || !c.EndAnchor.Valid():
			b.log.Debug("dropping connection with unknown anchor", zap.String("start", string(c.StartAnchor)), zap.String("end", string(c.EndAnchor)))
			continue
		case c.StartCard == c.EndCard:
			b.log.Debug("dropping self-loop", zap.String("card", c.StartCard))
			continue
		case containsEquivalent(keptConnections, c):
			b.log.Debug("dropping duplicate connection", zap.String("start", c.StartCard), zap.String("end", c.EndCard))
			continue
		}
		keptConnections = append(keptConnections, c)
	}

	return keptCards, keptPositions, keptConnections
}

func containsEquivalent(conns []Connection, c Connection) bool {
	for _, existing := range conns {
		if existing.Equivalent(c) {
			return true
		}
	}
	return false
}

func (b *Board) AddCard(data CardData) Card {
	card := Card{
		ID:        b.newID(),
		Title:     data.Title,
		Body:      data.Body,
		Author:    data.Author,
		Color:     NormalizeColor(data.Color),
		CreatedAt: b.now().UTC(),
	}
	b.cards = append(b.cards, card)
	b.persist(keyCards)
	b.emit(Event{Kind: EventCardAdded, CardID: card.ID, Index: -1})
	return card
}

// DeleteCard removes the card together with its position and every
// connection touching it, then writes all three collections.
func (b *Board) DeleteCard(id string) {
	idx := b.cardIndex(id)
	if idx < 0 {
		return
	}

	b.cards = append(b.cards[:idx:idx], b.cards[idx+1:]...)
	delete(b.positions, id)
	kept := make([]Connection, 0, len(b.connections))
	for _, c := range b.connections {
		if !c.Touches(id) {
			kept = append(kept, c)
		}
	}
	b.connections = kept
	if b.pending != nil && b.pending.CardID == id {
		b.pending = nil
	}

	b.persist(keyCards, keyPositions, keyConnections)
	b.emit(Event{Kind: EventCardDeleted, CardID: id, Index: -1})
}

func (b *Board) MoveCard(id string, p Position) {
	b.positions[id] = p
	b.persist(keyPositions)
	b.emit(Event{Kind: EventCardMoved, CardID: id, Index: -1})
}

func (b *Board) EditCard(id string, u CardUpdate) {
	idx := b.cardIndex(id)
	if idx < 0 {
		return
	}
	card := &b.cards[idx]
	if u.Title != nil {
		card.Title = *u.Title
	}
	if u.Body != nil {
		card.Body = *u.Body
	}
	if u.Author != nil {
		card.Author = *u.Author
	}
	if u.Color != nil {
		card.Color = NormalizeColor(*u.Color)
	}
	b.persist(keyCards)
	b.emit(Event{Kind: EventCardEdited, CardID: id, Index: -1})
}

func (b *Board) BeginConnection(cardID string, a Anchor) {
	b.pending = &PendingConnection{CardID: cardID, Anchor: a}
	b.emit(Event{Kind: EventPendingChanged, CardID: cardID, Index: -1})
}

// TryCompleteConnection finishes the pending connection at (cardID, a).
// Self-loops and duplicates of an existing connection are dropped without
// complaint. Pending is cleared whatever happens; the result reports whether
// a new connection was added.
func (b *Board) TryCompleteConnection(cardID string, a Anchor) bool {
	if b.pending == nil {
		return false
	}
	from := *b.pending
	b.pending = nil
	b.emit(Event{Kind: EventPendingChanged, CardID: cardID, Index: -1})

	if from.CardID == cardID {
		b.log.Debug("rejecting self-loop", zap.String("card", cardID))
		return false
	}
	if !a.Valid() || !from.Anchor.Valid() {
		b.log.Debug("rejecting connection with unknown anchor", zap.String("card", cardID))
		return false
	}

	candidate := Connection{
		StartCard:   from.CardID,
		EndCard:     cardID,
		StartAnchor: from.Anchor,
		EndAnchor:   a,
	}
	if containsEquivalent(b.connections, candidate) {
		b.log.Debug("discarding duplicate connection", zap.String("start", candidate.StartCard), zap.String("end", candidate.EndCard))
		return false
	}

	b.connections = append(b.connections, candidate)
	b.persist(keyConnections)
	b.emit(Event{Kind: EventConnectionAdded, CardID: cardID, Index: len(b.connections) - 1})
	return true
}

func (b *Board) CancelConnection() {
	if b.pending == nil {
		return
	}
	b.pending = nil
	b.emit(Event{Kind: EventPendingChanged, Index: -1})
}

func (b *Board) DeleteConnection(index int) {
	if index < 0 || index >= len(b.connections) {
		return
	}
	b.connections = append(b.connections[:index:index], b.connections[index+1:]...)
	b.persist(keyConnections)
	b.emit(Event{Kind: EventConnectionDeleted, Index: index})
}

func (b *Board) Cards() []Card {
	out := make([]Card, len(b.cards))
	copy(out, b.cards)
	return out
}

func (b *Board) Card(id string) (Card, bool) {
	idx := b.cardIndex(id)
	if idx < 0 {
		return Card{}, false
	}
	return b.cards[idx], true
}

// Position returns where the card sits, or the origin if it was never moved.
func (b *Board) Position(id string) Position {
	return b.positions[id]
}

func (b *Board) HasPosition(id string) bool {
	_, ok := b.positions[id]
	return ok
}

func (b *Board) Positions() map[string]Position {
	out := make(map[string]Position, len(b.positions))
	for id, p := range b.positions {
		out[id] = p
	}
	return out
}

func (b *Board) Connections() []Connection {
	out := make([]Connection, len(b.connections))
	copy(out, b.connections)
	return out
}

func (b *Board) Pending() (PendingConnection, bool) {
	if b.pending == nil {
		return PendingConnection{}, false
	}
	return *b.pending, true
}

// Err is the last persistence failure, or nil once a write succeeds again.
func (b *Board) Err() error {
	return b.err
}

// Subscribe registers fn for every later state change. The returned func
// removes it.
func (b *Board) Subscribe(fn func(Event)) func() {
	id := b.nextObserver
	b.nextObserver++
	b.observers[id] = fn
	return func() { delete(b.observers, id) }
}

func (b *Board) emit(e Event) {
	for i := 0; i < b.nextObserver; i++ {
		if fn, ok := b.observers[i]; ok {
			fn(e)
		}
	}
}

func (b *Board) cardIndex(id string) int {
	for i, c := range b.cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (b *Board) persist(keys ...string) {
	if b.store == nil {
		return
	}
	ctx := context.Background()
	b.err = nil
	for _, key := range keys {
		var v any
		switch key {
		case keyCards:
			v = b.cards
		case keyPositions:
			v = b.positions
		case keyConnections:
			v = b.connections
		default:
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			b.err = err
			b.log.Error("encoding collection", zap.String("key", key), zap.Error(err))
			continue
		}
		if err := b.store.Put(ctx, key, data); err != nil {
			b.err = err
			b.log.Error("writing collection", zap.String("key", key), zap.Error(err))
		}
	}
}
