package duel

import (
	"log"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
)

// forfeit обрабатывает forfeit_match: победа присуждается сопернику
func (e *Engine) forfeit(conn Conn, gameID string) {
	userID, ok := e.connOwners[conn.ID()]
	if !ok {
		log.Printf("[DuelLifecycle] forfeit_match от соединения %s без активной дуэли", conn.ID())
		return
	}
	s := e.getActiveState(gameID)
	if s == nil || e.membership[userID] != gameID {
		// Дуэль уже завершена (например, таймером) - ничего не делаем
		return
	}
	if p := s.player(userID); p == nil || p.Conn.ID() != conn.ID() {
		return
	}
	e.resolveWalkover(s, userID, entity.DuelEndForfeit)
}

// connectionClosed обрабатывает разрыв соединения.
// Заявка в очереди удаляется, активная дуэль завершается победой соперника.
func (e *Engine) connectionClosed(conn Conn) {
	connID := conn.ID()
	if t := e.queue.removeByConn(connID); t != nil {
		log.Printf("[DuelLifecycle] Пользователь %d отключился, заявка по теме %q удалена", t.UserID, t.Topic)
	}

	userID, ok := e.connOwners[connID]
	if !ok {
		return
	}
	delete(e.connOwners, connID)

	// Дуэль еще готовится: игрок проиграет сразу после ее создания
	if p := e.pairing[userID]; p != nil {
		if t := p.ticket(userID); t != nil && t.Conn.ID() == connID {
			p.left[userID] = true
			log.Printf("[DuelLifecycle] Пользователь %d отключился во время подготовки дуэли", userID)
		}
		return
	}

	sessionID, inGame := e.membership[userID]
	if !inGame {
		return
	}
	s := e.getActiveState(sessionID)
	if s == nil {
		return
	}
	// Дуэль завершается только если оборвалось именно соединение игрока в этой дуэли
	if p := s.player(userID); p == nil || p.Conn.ID() != connID {
		return
	}
	e.resolveWalkover(s, userID, entity.DuelEndDisconnect)
}

// resolveWalkover завершает дуэль победой соперника loserID
func (e *Engine) resolveWalkover(s *ActiveGameState, loserID uint, reason string) {
	opp := s.opponent(loserID)
	if opp == nil {
		return
	}
	winner := opp.UserID
	log.Printf("[DuelLifecycle] Дуэль %s: игрок %d выбывает (%s), победа %d", s.SessionID, loserID, reason, winner)
	e.endSession(s.SessionID, &winner, reason)
}
