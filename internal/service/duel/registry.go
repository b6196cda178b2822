package duel

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

// roomPrefix - префикс комнаты рассылки дуэли
const roomPrefix = "game-"

// pendingPair - пара игроков, для которой вне цикла готовятся вопросы и запись дуэли.
// Оба игрока зарезервированы в e.pairing до completePairing.
type pendingPair struct {
	waiting   *Ticket // дольше ждавший игрок
	requester *Ticket
	// игроки, отключившиеся во время подготовки
	left map[uint]bool
}

func (p *pendingPair) ticket(userID uint) *Ticket {
	switch userID {
	case p.waiting.UserID:
		return p.waiting
	case p.requester.UserID:
		return p.requester
	}
	return nil
}

type pairingResult struct {
	record    *entity.DuelSession
	questions []entity.Question
	err       error
}

// startPairing резервирует обоих игроков и запускает подготовку дуэли в отдельной горутине.
// Обращения к банку вопросов и хранилищу не блокируют цикл движка.
func (e *Engine) startPairing(waiting, requester *Ticket) {
	p := &pendingPair{waiting: waiting, requester: requester, left: make(map[uint]bool)}
	e.pairing[waiting.UserID] = p
	e.pairing[requester.UserID] = p

	e.pairings.Add(1)
	go func() {
		defer e.pairings.Done()
		res := e.preparePairing(waiting, requester)
		if err := e.exec(func() { e.completePairing(p, res) }); err != nil {
			e.abandonPairing(res)
		}
	}()
}

// preparePairing выбирает вопросы и создает запись дуэли.
// Выполняется вне цикла и не трогает состояние движка.
func (e *Engine) preparePairing(p1, p2 *Ticket) pairingResult {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
	defer cancel()

	topic := p1.Topic
	questions, err := e.deps.Questions.GetRandomByTopic(ctx, topic, e.cfg.QuestionsPerDuel)
	if err != nil {
		return pairingResult{err: fmt.Errorf("failed to sample questions: %w", err)}
	}
	if len(questions) == 0 {
		return pairingResult{err: fmt.Errorf("%w: %s", apperrors.ErrNotEnoughQuestions, topic)}
	}
	if len(questions) < e.cfg.QuestionsPerDuel {
		log.Printf("[DuelRegistry] В теме %q только %d вопросов из %d, дуэль будет короче", topic, len(questions), e.cfg.QuestionsPerDuel)
	}

	sessionID := uuid.NewString()
	record := &entity.DuelSession{
		ID:            sessionID,
		Topic:         topic,
		Player1ID:     p1.UserID,
		Player2ID:     p2.UserID,
		Status:        entity.DuelStatusInProgress,
		QuestionCount: len(questions),
		Participants: []entity.DuelParticipant{
			{SessionID: sessionID, UserID: p1.UserID, Username: p1.Username},
			{SessionID: sessionID, UserID: p2.UserID, Username: p2.Username},
		},
	}
	if err := e.deps.Store.CreateSession(ctx, record); err != nil {
		return pairingResult{err: fmt.Errorf("failed to persist session: %w", err)}
	}
	return pairingResult{record: record, questions: questions}
}

// abandonPairing закрывает запись дуэли, подготовленной уже после остановки движка
func (e *Engine) abandonPairing(res pairingResult) {
	if res.record == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
	defer cancel()
	if err := e.deps.Store.CompleteSession(ctx, res.record.ID, nil, entity.DuelEndShutdown); err != nil {
		log.Printf("[DuelRegistry] Не удалось закрыть дуэль %s после остановки: %v", res.record.ID, err)
	}
}

// completePairing выполняется в цикле после подготовки дуэли
func (e *Engine) completePairing(p *pendingPair, res pairingResult) {
	w, r := p.waiting, p.requester
	delete(e.pairing, w.UserID)
	delete(e.pairing, r.UserID)

	if res.err != nil {
		e.pairingFailed(p, res.err)
		return
	}

	s := e.activateSession(res.record, res.questions, w, r)

	// Игрок, отключившийся во время подготовки, проигрывает
	switch {
	case p.left[w.UserID] && p.left[r.UserID]:
		e.endSession(s.SessionID, nil, entity.DuelEndDisconnect)
	case p.left[w.UserID]:
		e.resolveWalkover(s, w.UserID, entity.DuelEndDisconnect)
	case p.left[r.UserID]:
		e.resolveWalkover(s, r.UserID, entity.DuelEndDisconnect)
	}
}

// pairingFailed: запросивший получает ошибку, ожидавший возвращается в голову очереди.
// Если в теме нет вопросов, ждать бессмысленно - ошибку получают оба.
func (e *Engine) pairingFailed(p *pendingPair, err error) {
	w, r := p.waiting, p.requester
	log.Printf("[Matchmaker] Не удалось создать дуэль для %d и %d: %v", w.UserID, r.UserID, err)

	e.releaseConn(r)
	if errors.Is(err, apperrors.ErrNotEnoughQuestions) {
		e.releaseConn(w)
		msg := MatchErrorPayload{Message: fmt.Sprintf("%v: %s", apperrors.ErrNotEnoughQuestions, w.Topic)}
		for _, t := range []*Ticket{w, r} {
			if !p.left[t.UserID] {
				e.sendTo(t.Conn, EventMatchError, msg)
			}
		}
		return
	}

	if !p.left[r.UserID] {
		e.sendTo(r.Conn, EventMatchError, MatchErrorPayload{Message: "Could not start the game, please try again"})
	}
	if p.left[w.UserID] {
		e.releaseConn(w)
		return
	}
	e.queue.requeueFront(w)
	e.sendTo(w.Conn, EventWaitingForMatch, WaitingPayload{Topic: w.Topic})
}

// releaseConn снимает привязку соединения заявки к пользователю
func (e *Engine) releaseConn(t *Ticket) {
	if e.connOwners[t.Conn.ID()] == t.UserID {
		delete(e.connOwners, t.Conn.ID())
	}
}

// activateSession создает состояние дуэли в памяти по готовой записи.
// p1 - игрок, дольше ждавший в очереди.
func (e *Engine) activateSession(record *entity.DuelSession, questions []entity.Question, p1, p2 *Ticket) *ActiveGameState {
	sessionID, topic := record.ID, record.Topic
	s := newActiveGameState(sessionID, topic, questions, p1, p2)
	e.sessions[sessionID] = s
	e.membership[p1.UserID] = sessionID
	e.membership[p2.UserID] = sessionID
	e.connOwners[p1.Conn.ID()] = p1.UserID
	e.connOwners[p2.Conn.ID()] = p2.UserID
	e.deps.Rooms.JoinRoom(s.Room, p1.Conn.ID(), p2.Conn.ID())

	found := MatchFoundPayload{
		GameID:   sessionID,
		GameRoom: s.Room,
		Topic:    topic,
		Players: []PlayerInfo{
			{UserID: p1.UserID, Username: p1.Username},
			{UserID: p2.UserID, Username: p2.Username},
		},
		TotalQuestions: len(questions),
	}
	e.sendTo(p1.Conn, EventMatchFound, found)
	e.sendTo(p2.Conn, EventMatchFound, found)

	if e.cfg.ReadyTimeout > 0 {
		e.armTimer(s, e.cfg.ReadyTimeout)
	}
	log.Printf("[DuelRegistry] Дуэль %s создана: тема %q, игроки %d и %d, вопросов %d", sessionID, topic, p1.UserID, p2.UserID, len(questions))
	return s
}

// getActiveState возвращает состояние активной дуэли или nil
func (e *Engine) getActiveState(sessionID string) *ActiveGameState {
	return e.sessions[sessionID]
}

// endSession завершает дуэль. Повторный вызов для уже завершенной дуэли ничего не делает.
func (e *Engine) endSession(sessionID string, winnerID *uint, reason string) {
	s := e.sessions[sessionID]
	if s == nil {
		return
	}

	s.stopTimer()
	s.Phase = PhaseGameOver
	scores := s.scores()

	e.broadcast(s, EventGameOver, GameOverPayload{
		GameID:   sessionID,
		Scores:   scores,
		WinnerID: winnerID,
		Reason:   reason,
	})

	for _, p := range s.Players {
		if e.membership[p.UserID] == sessionID {
			delete(e.membership, p.UserID)
		}
		if e.connOwners[p.Conn.ID()] == p.UserID {
			delete(e.connOwners, p.Conn.ID())
		}
	}
	e.deps.Rooms.CloseRoom(s.Room)
	delete(e.sessions, sessionID)

	if winnerID != nil {
		log.Printf("[DuelRegistry] Дуэль %s завершена (%s), победитель %d, счет %v", sessionID, reason, *winnerID, scores)
	} else {
		log.Printf("[DuelRegistry] Дуэль %s завершена (%s) без победителя, счет %v", sessionID, reason, scores)
	}

	e.bridge.submitFinalize(finalizeJob{
		SessionID: sessionID,
		Topic:     s.Topic,
		Player1ID: s.Players[0].UserID,
		Player2ID: s.Players[1].UserID,
		WinnerID:  winnerID,
		Reason:    reason,
		Scores:    scores,
		// Остановка сервиса не должна влиять на рейтинг
		SkipRating: reason == entity.DuelEndShutdown,
	})
}
