package duel

import (
	"context"
	"log"
	"runtime/debug"
	"sync"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
)

// Engine владеет очередями, активными дуэлями и их таймерами.
// Все изменения состояния выполняются в одной горутине (Run), поэтому
// карты engine не защищены мьютексами.
type Engine struct {
	cfg   Config
	deps  Dependencies
	clock Clock

	queue    *matchmaker
	sessions map[string]*ActiveGameState
	// userID -> sessionID для игроков активных дуэлей
	membership map[uint]string
	// connID -> userID для соединений, с которых пришел find_match
	connOwners map[string]uint
	// userID -> пара, для которой готовится дуэль
	pairing  map[uint]*pendingPair
	pairings sync.WaitGroup

	bridge *scoringBridge

	cmds     chan func()
	quit     chan struct{}
	stopped  chan struct{}
	runOnce  sync.Once
	quitOnce sync.Once
}

// NewEngine создает движок. Run нужно запустить отдельно.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.QuestionsPerDuel <= 0 {
		cfg.QuestionsPerDuel = DefaultQuestionsPerDuel
	}
	if cfg.PersistRetries <= 0 {
		cfg.PersistRetries = 1
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultConfig().StoreTimeout
	}
	if cfg.BridgeBuffer <= 0 {
		cfg.BridgeBuffer = DefaultConfig().BridgeBuffer
	}
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}

	e := &Engine{
		cfg:        cfg,
		deps:       deps,
		clock:      clock,
		queue:      newMatchmaker(),
		sessions:   make(map[string]*ActiveGameState),
		membership: make(map[uint]string),
		connOwners: make(map[string]uint),
		pairing:    make(map[uint]*pendingPair),
		cmds:       make(chan func()),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	e.bridge = newScoringBridge(cfg, deps.Store, deps.Ratings, deps.Publisher)
	return e, nil
}

// Run обрабатывает команды до отмены ctx. После выхода из цикла
// дожидается записи всех поставленных в очередь результатов.
func (e *Engine) Run(ctx context.Context) {
	started := false
	e.runOnce.Do(func() { started = true })
	if !started {
		log.Printf("[DuelEngine] Run вызван повторно, игнорируем")
		return
	}

	e.bridge.start()
	log.Printf("[DuelEngine] Запущен (вопросов на дуэль: %d, время на вопрос: %s)", e.cfg.QuestionsPerDuel, e.cfg.QuestionDuration)

	for {
		select {
		case fn := <-e.cmds:
			e.runCommand(fn)
		case <-ctx.Done():
			e.shutdown()
			return
		}
	}
}

// Stopped закрывается после полной остановки движка
func (e *Engine) Stopped() <-chan struct{} {
	return e.stopped
}

func (e *Engine) shutdown() {
	e.quitOnce.Do(func() { close(e.quit) })

	// Незавершенные дуэли закрываются без победителя, рейтинг не меняется
	for id := range e.sessions {
		log.Printf("[DuelEngine] Остановка: дуэль %s прервана", id)
		e.endSession(id, nil, entity.DuelEndShutdown)
	}
	// Подготовка пар, не успевшая вернуться в цикл, закрывает свои записи сама
	e.pairings.Wait()
	e.bridge.close()
	log.Printf("[DuelEngine] Остановлен")
	close(e.stopped)
}

// runCommand выполняет команду, не давая панике остановить цикл
func (e *Engine) runCommand(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[DuelEngine] PANIC recovered: %v\n%s", r, string(debug.Stack()))
		}
	}()
	fn()
}

// exec передает команду в цикл и ждет ее выполнения.
// Нельзя вызывать из самого цикла.
func (e *Engine) exec(fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case e.cmds <- wrapped:
	case <-e.quit:
		return ErrEngineStopped
	}
	select {
	case <-done:
		return nil
	case <-e.quit:
		return ErrEngineStopped
	}
}

// FindMatch ставит игрока в очередь темы или сразу создает дуэль
func (e *Engine) FindMatch(conn Conn, userID uint, username, topic string) error {
	return e.exec(func() { e.requestMatch(conn, userID, username, topic) })
}

// CancelSearch убирает заявку соединения из очереди
func (e *Engine) CancelSearch(conn Conn) error {
	return e.exec(func() { e.cancelSearch(conn) })
}

// PlayerReady отмечает готовность игрока
func (e *Engine) PlayerReady(conn Conn, gameID string, userID uint) error {
	return e.exec(func() { e.playerReady(conn, gameID, userID) })
}

// SubmitAnswer принимает ответ игрока на текущий вопрос
func (e *Engine) SubmitAnswer(conn Conn, gameID string, userID uint, answer string) error {
	return e.exec(func() { e.submitAnswer(conn, gameID, userID, answer) })
}

// Forfeit завершает дуэль поражением отправителя
func (e *Engine) Forfeit(conn Conn, gameID string) error {
	return e.exec(func() { e.forfeit(conn, gameID) })
}

// ConnectionClosed обрабатывает закрытие соединения
func (e *Engine) ConnectionClosed(conn Conn) error {
	return e.exec(func() { e.connectionClosed(conn) })
}

// Stats - снимок счетчиков движка
type Stats struct {
	Queued         map[string]int `json:"queued"`
	QueuedTotal    int            `json:"queued_total"`
	LiveSessions   int            `json:"live_sessions"`
	PlayersInGame  int            `json:"players_in_game"`
	PlayersPairing int            `json:"players_pairing"`
}

// Stats возвращает текущие счетчики
func (e *Engine) Stats() (Stats, error) {
	var st Stats
	err := e.exec(func() {
		st = Stats{
			Queued:         e.queue.stats(),
			QueuedTotal:    e.queue.size(),
			LiveSessions:   len(e.sessions),
			PlayersInGame:  len(e.membership),
			PlayersPairing: len(e.pairing),
		}
	})
	return st, err
}

// sendTo отправляет личное событие и логирует ошибку доставки
func (e *Engine) sendTo(conn Conn, eventType string, data interface{}) {
	if conn == nil {
		return
	}
	if err := conn.SendEvent(eventType, data); err != nil {
		log.Printf("[DuelEngine] Не удалось отправить %s в соединение %s: %v", eventType, conn.ID(), err)
	}
}

func (e *Engine) sendError(conn Conn, code, message string) {
	e.sendTo(conn, EventServerError, ErrorPayload{Code: code, Message: message})
}

func (e *Engine) broadcast(s *ActiveGameState, eventType string, data interface{}) {
	if err := e.deps.Rooms.BroadcastEventToRoom(s.Room, eventType, data); err != nil {
		log.Printf("[DuelEngine] Ошибка рассылки %s в комнату %s: %v", eventType, s.Room, err)
	}
}
