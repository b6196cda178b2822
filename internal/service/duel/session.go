package duel

import (
	"fmt"
	"log"
	"time"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

// Phase - фаза дуэли
type Phase int

const (
	PhaseWaitForReady Phase = iota
	PhaseQuestionActive
	PhaseReveal
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseWaitForReady:
		return "wait_for_ready"
	case PhaseQuestionActive:
		return "question_active"
	case PhaseReveal:
		return "reveal"
	case PhaseGameOver:
		return "game_over"
	}
	return "unknown"
}

// PlayerState - состояние игрока внутри дуэли
type PlayerState struct {
	UserID      uint
	Username    string
	Conn        Conn
	Score       int
	HasAnswered bool
	Ready       bool
}

// ActiveGameState - состояние дуэли в памяти
type ActiveGameState struct {
	SessionID            string
	Topic                string
	Room                 string
	Players              [2]*PlayerState
	Questions            []entity.Question
	CurrentQuestionIndex int
	Phase                Phase

	// Единственный ожидающий таймер и его поколение.
	// Колбэк с устаревшим поколением игнорируется.
	timer    Timer
	timerGen uint64
}

func newActiveGameState(sessionID, topic string, questions []entity.Question, p1, p2 *Ticket) *ActiveGameState {
	return &ActiveGameState{
		SessionID: sessionID,
		Topic:     topic,
		Room:      roomPrefix + sessionID,
		Players: [2]*PlayerState{
			{UserID: p1.UserID, Username: p1.Username, Conn: p1.Conn},
			{UserID: p2.UserID, Username: p2.Username, Conn: p2.Conn},
		},
		Questions: questions,
		Phase:     PhaseWaitForReady,
	}
}

// player возвращает игрока по userID или nil
func (s *ActiveGameState) player(userID uint) *PlayerState {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// opponent возвращает соперника userID или nil
func (s *ActiveGameState) opponent(userID uint) *PlayerState {
	switch userID {
	case s.Players[0].UserID:
		return s.Players[1]
	case s.Players[1].UserID:
		return s.Players[0]
	}
	return nil
}

func (s *ActiveGameState) currentQuestion() *entity.Question {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return nil
	}
	return &s.Questions[s.CurrentQuestionIndex]
}

func (s *ActiveGameState) scores() map[uint]int {
	return map[uint]int{
		s.Players[0].UserID: s.Players[0].Score,
		s.Players[1].UserID: s.Players[1].Score,
	}
}

func (s *ActiveGameState) scoreUpdate() ScoreUpdatePayload {
	players := make(map[uint]PlayerScore, 2)
	for _, p := range s.Players {
		players[p.UserID] = PlayerScore{Score: p.Score}
	}
	return ScoreUpdatePayload{GameID: s.SessionID, Players: players}
}

// leader возвращает userID игрока со строго большим счетом, nil при ничьей
func (s *ActiveGameState) leader() *uint {
	a, b := s.Players[0], s.Players[1]
	switch {
	case a.Score > b.Score:
		id := a.UserID
		return &id
	case b.Score > a.Score:
		id := b.UserID
		return &id
	}
	return nil
}

func (s *ActiveGameState) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

// armTimer заменяет ожидающий таймер дуэли новым
func (e *Engine) armTimer(s *ActiveGameState, d time.Duration) {
	s.stopTimer()
	sessionID, gen := s.SessionID, s.timerGen
	s.timer = e.clock.AfterFunc(d, func() {
		// Ошибка означает, что движок остановлен
		_ = e.exec(func() { e.onTimer(sessionID, gen) })
	})
}

func (e *Engine) onTimer(sessionID string, gen uint64) {
	s := e.sessions[sessionID]
	if s == nil || s.timerGen != gen {
		return
	}
	s.timer = nil

	switch s.Phase {
	case PhaseWaitForReady:
		e.onReadyTimeout(s)
	case PhaseQuestionActive:
		e.revealAnswer(s)
	case PhaseReveal:
		e.advance(s)
	}
}

// startQuestion переводит дуэль в QuestionActive для текущего индекса
func (e *Engine) startQuestion(s *ActiveGameState) {
	q := s.currentQuestion()
	if q == nil {
		e.finishByScore(s)
		return
	}
	s.Phase = PhaseQuestionActive
	for _, p := range s.Players {
		p.HasAnswered = false
	}

	e.broadcast(s, EventNewQuestion, NewQuestionPayload{
		GameID: s.SessionID,
		Question: QuestionView{
			ID:      q.ID,
			Text:    q.Text,
			Options: append([]string(nil), q.Options...),
		},
		QuestionNumber: s.CurrentQuestionIndex + 1,
		TotalQuestions: len(s.Questions),
		TimeLimitSec:   timeLimitSeconds(e.cfg.QuestionDuration),
	})
	// Таймер всегда отрабатывает полностью, даже если оба уже ответили
	e.armTimer(s, e.cfg.QuestionDuration)
}

// timeLimitSeconds округляет длительность вопроса вверх до целых секунд
func timeLimitSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// revealAnswer закрывает прием ответов и показывает правильный вариант
func (e *Engine) revealAnswer(s *ActiveGameState) {
	q := s.currentQuestion()
	s.Phase = PhaseReveal
	correct := ""
	if q != nil {
		correct = q.CorrectLetter()
	}
	e.broadcast(s, EventTimesUp, TimesUpPayload{
		GameID:         s.SessionID,
		CorrectAnswer:  correct,
		QuestionNumber: s.CurrentQuestionIndex + 1,
	})
	e.armTimer(s, e.cfg.RevealGrace)
}

// advance переходит к следующему вопросу или завершает дуэль
func (e *Engine) advance(s *ActiveGameState) {
	s.CurrentQuestionIndex++
	if s.CurrentQuestionIndex >= len(s.Questions) {
		e.finishByScore(s)
		return
	}
	e.startQuestion(s)
}

func (e *Engine) finishByScore(s *ActiveGameState) {
	e.endSession(s.SessionID, s.leader(), entity.DuelEndCompleted)
}

// onReadyTimeout: победа единственного готового игрока, иначе завершение без победителя
func (e *Engine) onReadyTimeout(s *ActiveGameState) {
	a, b := s.Players[0], s.Players[1]
	var winner *uint
	switch {
	case a.Ready && !b.Ready:
		id := a.UserID
		winner = &id
	case b.Ready && !a.Ready:
		id := b.UserID
		winner = &id
	}
	log.Printf("[DuelScheduler] Дуэль %s: истекло ожидание готовности (готовы: %d=%t, %d=%t)", s.SessionID, a.UserID, a.Ready, b.UserID, b.Ready)
	e.endSession(s.SessionID, winner, entity.DuelEndReadyTimeout)
}

// sessionForSender находит дуэль и игрока-отправителя. Сообщает об ошибке отправителю.
func (e *Engine) sessionForSender(conn Conn, gameID string, userID uint) (*ActiveGameState, *PlayerState) {
	s := e.getActiveState(gameID)
	if s == nil {
		e.sendError(conn, ErrCodeGameNotFound, "Game not found or already finished")
		return nil, nil
	}
	p := s.player(userID)
	if p == nil || p.Conn.ID() != conn.ID() {
		e.sendError(conn, ErrCodeNotParticipant, apperrors.ErrNotParticipant.Error())
		return nil, nil
	}
	return s, p
}

// playerReady обрабатывает player_ready
func (e *Engine) playerReady(conn Conn, gameID string, userID uint) {
	s, p := e.sessionForSender(conn, gameID, userID)
	if s == nil {
		return
	}
	if s.Phase != PhaseWaitForReady || p.Ready {
		return
	}
	p.Ready = true
	log.Printf("[DuelScheduler] Дуэль %s: игрок %d готов", gameID, userID)

	if s.Players[0].Ready && s.Players[1].Ready {
		e.startQuestion(s)
	}
}

// submitAnswer обрабатывает submit_answer. Засчитывается только первый ответ игрока на вопрос.
func (e *Engine) submitAnswer(conn Conn, gameID string, userID uint, answer string) {
	s, p := e.sessionForSender(conn, gameID, userID)
	if s == nil {
		return
	}
	if s.Phase != PhaseQuestionActive || p.HasAnswered {
		return
	}
	q := s.currentQuestion()
	if q == nil {
		return
	}
	if _, ok := entity.OptionIndex(answer); !ok {
		e.sendError(conn, ErrCodeInvalidAnswer, fmt.Sprintf("%v: %q, expected one of A, B, C, D", apperrors.ErrInvalidAnswer, answer))
		return
	}

	p.HasAnswered = true
	if q.IsCorrectLetter(answer) {
		p.Score += e.cfg.CorrectReward
		e.bridge.submitScore(s.SessionID, p.UserID, e.cfg.CorrectReward)
	}
	e.broadcast(s, EventScoreUpdate, s.scoreUpdate())
}
