package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"

	apperrors "github.com/Akhilsri/SheetSolver-sub000/internal/pkg/errors"
)

// TicketUsage - значение claim usage у WebSocket-тикетов
const TicketUsage = "websocket_auth"

const (
	ticketIssuer   = "sheetsolver-api"
	ticketAudience = "sheetsolver-ws"
)

// TicketClaims содержит поля WebSocket-тикета
type TicketClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username,omitempty"`
	Usage    string `json:"usage,omitempty"`
	jwt.RegisteredClaims
}

// TicketService выпускает и проверяет короткоживущие HS256-тикеты для /ws
type TicketService struct {
	secret []byte
	ttl    time.Duration
}

// NewTicketService создает сервис тикетов. Пустой секрет недопустим.
func NewTicketService(secret string, ttl time.Duration) (*TicketService, error) {
	if secret == "" {
		return nil, errors.New("ws ticket secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TicketService{secret: []byte(secret), ttl: ttl}, nil
}

// GenerateTicket создает тикет для пользователя
func (s *TicketService) GenerateTicket(userID uint, username string) (string, error) {
	now := time.Now()
	claims := &TicketClaims{
		UserID:   userID,
		Username: username,
		Usage:    TicketUsage,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    ticketIssuer,
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  jwt.ClaimStrings{ticketAudience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[Ticket] Ошибка генерации WS-тикета для пользователя ID=%d: %v", userID, err)
		return "", err
	}
	return signed, nil
}

// ParseTicket проверяет подпись, срок действия и назначение тикета
func (s *TicketService) ParseTicket(ticket string) (*TicketClaims, error) {
	claims := &TicketClaims{}
	token, err := jwt.ParseWithClaims(ticket, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, apperrors.ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}
	if claims.Usage != TicketUsage {
		return nil, fmt.Errorf("%w: invalid ticket usage %q", apperrors.ErrUnauthorized, claims.Usage)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: ticket has no user id", apperrors.ErrUnauthorized)
	}
	return claims, nil
}
