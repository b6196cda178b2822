package duel

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/entity"
)

func newTestBridge(store *mockSessionStore, ratings *mockRatingService, publisher *mockPublisher) *scoringBridge {
	cfg := DefaultConfig()
	cfg.RetryInterval = time.Millisecond
	var pub EventPublisher
	if publisher != nil {
		pub = publisher
	}
	return newScoringBridge(cfg, store, ratings, pub)
}

func TestScoringBridge_FinalizeOrder(t *testing.T) {
	// Arrange
	store := new(mockSessionStore)
	ratings := new(mockRatingService)
	publisher := new(mockPublisher)

	var order []string
	store.On("IncrementScore", mock.Anything, "g1", uint(1), 10).Return(nil).
		Run(func(mock.Arguments) { order = append(order, "score") })
	store.On("CompleteSession", mock.Anything, "g1", uintPtr(1), entity.DuelEndCompleted).Return(nil).
		Run(func(mock.Arguments) { order = append(order, "complete") })
	ratings.On("AdjustRatings", mock.Anything, uint(1), uint(2), uintPtr(1)).Return(nil).
		Run(func(mock.Arguments) { order = append(order, "rating") })

	var published []byte
	publisher.On("Publish", "duel:events", mock.Anything).Return(nil).
		Run(func(args mock.Arguments) { published = args.Get(1).([]byte) })

	b := newTestBridge(store, ratings, publisher)
	b.start()

	// Act
	b.submitScore("g1", 1, 10)
	b.submitFinalize(finalizeJob{
		SessionID: "g1",
		Topic:     "Graphs",
		Player1ID: 1,
		Player2ID: 2,
		WinnerID:  uintPtr(1),
		Reason:    entity.DuelEndCompleted,
		Scores:    map[uint]int{1: 10, 2: 0},
	})
	b.close()

	// Assert
	assert.Equal(t, []string{"score", "complete", "rating"}, order, "Рейтинг пересчитывается после записи очков и завершения")

	var note FinishedNotification
	require.NoError(t, json.Unmarshal(published, &note))
	assert.Equal(t, PublishedDuelFinished, note.Type)
	assert.Equal(t, "g1", note.GameID)
	require.NotNil(t, note.WinnerID)
	assert.Equal(t, uint(1), *note.WinnerID)
}

func TestScoringBridge_RetriesCompleteSession(t *testing.T) {
	store := new(mockSessionStore)
	ratings := new(mockRatingService)

	store.On("CompleteSession", mock.Anything, "g1", (*uint)(nil), entity.DuelEndReadyTimeout).Return(errors.New("busy")).Twice()
	store.On("CompleteSession", mock.Anything, "g1", (*uint)(nil), entity.DuelEndReadyTimeout).Return(nil).Once()
	ratings.On("AdjustRatings", mock.Anything, uint(1), uint(2), (*uint)(nil)).Return(nil).Once()

	b := newTestBridge(store, ratings, nil)
	b.start()
	b.submitFinalize(finalizeJob{SessionID: "g1", Player1ID: 1, Player2ID: 2, Reason: entity.DuelEndReadyTimeout})
	b.close()

	store.AssertNumberOfCalls(t, "CompleteSession", 3)
	ratings.AssertNumberOfCalls(t, "AdjustRatings", 1)
}

func TestScoringBridge_SkipsRatingWhenCompleteFails(t *testing.T) {
	store := new(mockSessionStore)
	ratings := new(mockRatingService)
	publisher := new(mockPublisher)

	store.On("CompleteSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))

	b := newTestBridge(store, ratings, publisher)
	b.start()
	b.submitFinalize(finalizeJob{SessionID: "g1", Player1ID: 1, Player2ID: 2, WinnerID: uintPtr(2), Reason: entity.DuelEndForfeit})
	b.close()

	store.AssertNumberOfCalls(t, "CompleteSession", DefaultConfig().PersistRetries)
	ratings.AssertNotCalled(t, "AdjustRatings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestScoringBridge_CloseIsIdempotent(t *testing.T) {
	b := newTestBridge(new(mockSessionStore), new(mockRatingService), nil)
	b.start()

	assert.NotPanics(t, func() {
		b.close()
		b.close()
	})
}
