package duel

import (
	"fmt"
	"log"
	"time"

	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

// Ticket - заявка игрока, ожидающего соперника по теме
type Ticket struct {
	UserID     uint
	Username   string
	Topic      string
	Conn       Conn
	EnqueuedAt time.Time
}

// matchmaker хранит FIFO-очереди заявок по темам.
// Используется только из цикла движка, поэтому без блокировок.
type matchmaker struct {
	queues map[string][]*Ticket
	byUser map[uint]*Ticket
}

func newMatchmaker() *matchmaker {
	return &matchmaker{
		queues: make(map[string][]*Ticket),
		byUser: make(map[uint]*Ticket),
	}
}

func (m *matchmaker) has(userID uint) bool {
	_, ok := m.byUser[userID]
	return ok
}

// enqueue добавляет заявку в хвост очереди темы
func (m *matchmaker) enqueue(t *Ticket) {
	m.queues[t.Topic] = append(m.queues[t.Topic], t)
	m.byUser[t.UserID] = t
}

// requeueFront возвращает заявку в голову очереди (после неудачного создания дуэли)
func (m *matchmaker) requeueFront(t *Ticket) {
	m.queues[t.Topic] = append([]*Ticket{t}, m.queues[t.Topic]...)
	m.byUser[t.UserID] = t
}

// popOldest извлекает самую старую заявку темы или nil
func (m *matchmaker) popOldest(topic string) *Ticket {
	q := m.queues[topic]
	if len(q) == 0 {
		return nil
	}
	t := q[0]
	q[0] = nil
	if len(q) == 1 {
		delete(m.queues, topic)
	} else {
		m.queues[topic] = q[1:]
	}
	delete(m.byUser, t.UserID)
	return t
}

// removeByConn удаляет заявку, привязанную к соединению. Возвращает nil, если заявки нет.
func (m *matchmaker) removeByConn(connID string) *Ticket {
	for topic, q := range m.queues {
		for i, t := range q {
			if t.Conn.ID() != connID {
				continue
			}
			rest := append(q[:i:i], q[i+1:]...)
			if len(rest) == 0 {
				delete(m.queues, topic)
			} else {
				m.queues[topic] = rest
			}
			delete(m.byUser, t.UserID)
			return t
		}
	}
	return nil
}

// stats возвращает длины очередей по темам
func (m *matchmaker) stats() map[string]int {
	out := make(map[string]int, len(m.queues))
	for topic, q := range m.queues {
		out[topic] = len(q)
	}
	return out
}

func (m *matchmaker) size() int {
	return len(m.byUser)
}

// requestMatch обрабатывает find_match
func (e *Engine) requestMatch(conn Conn, userID uint, username, topic string) {
	if !e.deps.Topics.IsKnown(topic) {
		log.Printf("[Matchmaker] Пользователь %d запросил неизвестную тему %q", userID, topic)
		e.sendTo(conn, EventMatchError, MatchErrorPayload{Message: fmt.Sprintf("%v: %s", apperrors.ErrUnknownTopic, topic)})
		return
	}
	if e.queue.has(userID) {
		e.sendTo(conn, EventMatchError, MatchErrorPayload{Message: apperrors.ErrAlreadyQueued.Error()})
		return
	}
	_, inGame := e.membership[userID]
	_, pairing := e.pairing[userID]
	if inGame || pairing {
		e.sendTo(conn, EventMatchError, MatchErrorPayload{Message: apperrors.ErrAlreadyInGame.Error()})
		return
	}

	e.connOwners[conn.ID()] = userID
	requester := &Ticket{
		UserID:     userID,
		Username:   username,
		Topic:      topic,
		Conn:       conn,
		EnqueuedAt: e.clock.Now(),
	}

	opponent := e.queue.popOldest(topic)
	if opponent == nil {
		e.queue.enqueue(requester)
		log.Printf("[Matchmaker] Пользователь %d ждет соперника по теме %q", userID, topic)
		e.sendTo(conn, EventWaitingForMatch, WaitingPayload{Topic: topic})
		return
	}

	log.Printf("[Matchmaker] Пара по теме %q: %d (ждал %s) и %d", topic, opponent.UserID,
		e.clock.Now().Sub(opponent.EnqueuedAt).Round(time.Millisecond), userID)
	e.startPairing(opponent, requester)
}

// cancelSearch обрабатывает cancel_match
func (e *Engine) cancelSearch(conn Conn) {
	t := e.queue.removeByConn(conn.ID())
	if t == nil {
		return
	}
	delete(e.connOwners, conn.ID())
	log.Printf("[Matchmaker] Пользователь %d отменил поиск по теме %q", t.UserID, t.Topic)
	e.sendTo(conn, EventMatchCancelled, WaitingPayload{Topic: t.Topic})
}
