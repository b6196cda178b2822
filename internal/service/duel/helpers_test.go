package duel

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
)

// --- Часы ---

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
	clock   *fakeClock
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f, clock: c}
	c.timers = append(c.timers, t)
	return t
}

// Advance сдвигает время и синхронно вызывает сработавшие таймеры по порядку
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

// pending возвращает количество активных таймеров
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fireStopped вызывает колбэки уже остановленных таймеров (гонка "таймер сработал до Stop")
func (c *fakeClock) fireStopped() {
	c.mu.Lock()
	var stray []func()
	for _, t := range c.timers {
		if t.stopped && !t.fired {
			t.fired = true
			stray = append(stray, t.f)
		}
	}
	c.mu.Unlock()
	for _, f := range stray {
		f()
	}
}

// --- Соединения и комнаты ---

type sentEvent struct {
	Type string
	Data interface{}
}

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []sentEvent
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) SendEvent(eventType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, sentEvent{Type: eventType, Data: data})
	return nil
}

func (c *fakeConn) ofType(eventType string) []sentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentEvent
	for _, ev := range c.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) last(eventType string) (sentEvent, bool) {
	evs := c.ofType(eventType)
	if len(evs) == 0 {
		return sentEvent{}, false
	}
	return evs[len(evs)-1], true
}

type roomEvent struct {
	Room string
	Type string
	Data interface{}
}

type fakeRooms struct {
	mu      sync.Mutex
	members map[string][]string
	closed  map[string]bool
	events  []roomEvent
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{members: make(map[string][]string), closed: make(map[string]bool)}
}

func (r *fakeRooms) JoinRoom(room string, connIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[room] = append(r.members[room], connIDs...)
}

func (r *fakeRooms) BroadcastEventToRoom(room, eventType string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed[room] {
		return fmt.Errorf("room %s is closed", room)
	}
	r.events = append(r.events, roomEvent{Room: room, Type: eventType, Data: data})
	return nil
}

func (r *fakeRooms) CloseRoom(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed[room] = true
	delete(r.members, room)
}

func (r *fakeRooms) ofType(eventType string) []roomEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []roomEvent
	for _, ev := range r.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (r *fakeRooms) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// --- Моки зависимостей ---

type mockQuestionBank struct{ mock.Mock }

func (m *mockQuestionBank) GetRandomByTopic(ctx context.Context, topic string, limit int) ([]entity.Question, error) {
	args := m.Called(ctx, topic, limit)
	qs, _ := args.Get(0).([]entity.Question)
	return qs, args.Error(1)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) CreateSession(ctx context.Context, session *entity.DuelSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionStore) IncrementScore(ctx context.Context, sessionID string, userID uint, delta int) error {
	args := m.Called(ctx, sessionID, userID, delta)
	return args.Error(0)
}

func (m *mockSessionStore) CompleteSession(ctx context.Context, sessionID string, winnerID *uint, reason string) error {
	args := m.Called(ctx, sessionID, winnerID, reason)
	return args.Error(0)
}

type mockRatingService struct{ mock.Mock }

func (m *mockRatingService) AdjustRatings(ctx context.Context, player1ID, player2ID uint, winnerID *uint) error {
	args := m.Called(ctx, player1ID, player2ID, winnerID)
	return args.Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(channel string, message []byte) error {
	args := m.Called(channel, message)
	return args.Error(0)
}

type staticTopics map[string]bool

func (t staticTopics) IsKnown(topic string) bool { return t[topic] }

// --- Стенд ---

const testTopic = "Graphs"

// sampleQuestions возвращает n вопросов; правильный ответ i-го вопроса - буква i%4
func sampleQuestions(n int) []entity.Question {
	qs := make([]entity.Question, n)
	for i := range qs {
		qs[i] = entity.Question{
			ID:            uint(i + 1),
			Topic:         testTopic,
			Text:          fmt.Sprintf("Вопрос %d", i+1),
			Options:       entity.StringArray{"a", "b", "c", "d"},
			CorrectOption: i % 4,
			PointValue:    10,
		}
	}
	return qs
}

type harness struct {
	engine    *Engine
	clock     *fakeClock
	rooms     *fakeRooms
	bank      *mockQuestionBank
	store     *mockSessionStore
	ratings   *mockRatingService
	publisher *mockPublisher
	cfg       Config
	cancel    context.CancelFunc
	stopped   bool
}

// newHarness собирает движок с моками. Ожидания моков настраиваются в setup до запуска цикла.
func newHarness(t *testing.T, questions int, setup func(h *harness)) *harness {
	t.Helper()

	h := &harness{
		clock:     newFakeClock(),
		rooms:     newFakeRooms(),
		bank:      new(mockQuestionBank),
		store:     new(mockSessionStore),
		ratings:   new(mockRatingService),
		publisher: new(mockPublisher),
	}
	h.cfg = DefaultConfig()
	h.cfg.RetryInterval = time.Millisecond

	if setup != nil {
		setup(h)
	} else {
		h.bank.On("GetRandomByTopic", mock.Anything, testTopic, h.cfg.QuestionsPerDuel).Return(sampleQuestions(questions), nil)
		h.store.On("CreateSession", mock.Anything, mock.AnythingOfType("*entity.DuelSession")).Return(nil)
		h.expectFinishing()
	}

	engine, err := NewEngine(h.cfg, Dependencies{
		Questions: h.bank,
		Store:     h.store,
		Ratings:   h.ratings,
		Topics:    staticTopics{testTopic: true, "Arrays": true},
		Rooms:     h.rooms,
		Publisher: h.publisher,
		Clock:     h.clock,
	})
	require.NoError(t, err)
	h.engine = engine

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go engine.Run(ctx)

	t.Cleanup(h.stop)
	return h
}

// expectFinishing разрешает записи очков, завершение дуэлей, рейтинг и публикацию
func (h *harness) expectFinishing() {
	h.store.On("IncrementScore", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.store.On("CompleteSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.ratings.On("AdjustRatings", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.publisher.On("Publish", h.cfg.EventsChannel, mock.Anything).Return(nil)
}

// settle дожидается, пока все начатые подготовки дуэлей вернутся в цикл
func (h *harness) settle() {
	h.engine.pairings.Wait()
}

// findMatch отправляет find_match и дожидается результата подготовки пары
func (h *harness) findMatch(t *testing.T, conn *fakeConn, userID uint, username, topic string) {
	t.Helper()
	require.NoError(t, h.engine.FindMatch(conn, userID, username, topic))
	h.settle()
}

// stop останавливает цикл и дожидается всех записей моста
func (h *harness) stop() {
	if h.stopped {
		return
	}
	h.stopped = true
	h.cancel()
	<-h.engine.Stopped()
}

// matchPlayers сводит игроков 1 и 2 и возвращает gameId
func (h *harness) matchPlayers(t *testing.T, c1, c2 *fakeConn) string {
	t.Helper()
	h.findMatch(t, c1, 1, "alice", testTopic)
	h.findMatch(t, c2, 2, "bob", testTopic)
	ev, ok := c2.last(EventMatchFound)
	require.True(t, ok, "Второй игрок должен получить match_found")
	return ev.Data.(MatchFoundPayload).GameID
}

// startGame сводит игроков и отмечает обоих готовыми
func (h *harness) startGame(t *testing.T, c1, c2 *fakeConn) string {
	t.Helper()
	gameID := h.matchPlayers(t, c1, c2)
	require.NoError(t, h.engine.PlayerReady(c1, gameID, 1))
	require.NoError(t, h.engine.PlayerReady(c2, gameID, 2))
	return gameID
}

func uintPtr(v uint) *uint { return &v }
