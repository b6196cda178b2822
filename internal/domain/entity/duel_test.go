package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDuelSession_Opponent(t *testing.T) {
	s := &DuelSession{Player1ID: 1, Player2ID: 2}

	assert.Equal(t, uint(2), s.Opponent(1))
	assert.Equal(t, uint(1), s.Opponent(2))
	assert.Equal(t, uint(0), s.Opponent(3), "Для постороннего пользователя соперника нет")
}

func TestDuelSession_Outcome(t *testing.T) {
	winner := uint(1)
	s := &DuelSession{Player1ID: 1, Player2ID: 2, WinnerID: &winner}

	assert.Equal(t, "win", s.Outcome(1))
	assert.Equal(t, "loss", s.Outcome(2))

	s.WinnerID = nil
	assert.Equal(t, "draw", s.Outcome(1), "Без победителя исход - ничья")
}

func TestDuelSession_IsCompleted(t *testing.T) {
	s := &DuelSession{Status: DuelStatusInProgress}
	assert.False(t, s.IsCompleted())

	s.Status = DuelStatusCompleted
	assert.True(t, s.IsCompleted())
}

func TestDuelRating_GamesPlayed(t *testing.T) {
	r := &DuelRating{Wins: 3, Losses: 2, Draws: 1}
	assert.Equal(t, 6, r.GamesPlayed())
}

func TestDuelTableNames(t *testing.T) {
	assert.Equal(t, "duel_sessions", DuelSession{}.TableName())
	assert.Equal(t, "duel_participants", DuelParticipant{}.TableName())
	assert.Equal(t, "duel_ratings", DuelRating{}.TableName())
}
