package websocket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// PubSubProvider публикует события дуэлей для внешних сервисов.
// Движок только пишет в каналы, подписчики живут вне процесса.
type PubSubProvider interface {
	// Publish публикует сообщение в указанный канал
	Publish(channel string, message []byte) error

	// Close закрывает все соединения и освобождает ресурсы
	Close() error
}

// NoOpPubSub реализует PubSubProvider для одиночного режима работы,
// когда публикация событий для внешних сервисов отключена
type NoOpPubSub struct{}

// Publish ничего не делает
func (p *NoOpPubSub) Publish(channel string, message []byte) error {
	return nil
}

// Close ничего не делает
func (p *NoOpPubSub) Close() error {
	return nil
}

// RedisPubSub реализует PubSubProvider с использованием Redis
type RedisPubSub struct {
	client redis.UniversalClient
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisPubSub создает новый Redis Pub/Sub провайдер, используя существующий UniversalClient.
// Клиент принадлежит вызывающему и не закрывается в Close.
func NewRedisPubSub(client redis.UniversalClient) (*RedisPubSub, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for RedisPubSub")
	}

	ctx, cancelCheck := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCheck()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("provided redis client failed ping check: %w", err)
	}

	ctxPubSub, cancelPubSub := context.WithCancel(context.Background())
	log.Println("RedisPubSub provider created using existing client.")
	return &RedisPubSub{
		client: client,
		ctx:    ctxPubSub,
		cancel: cancelPubSub,
	}, nil
}

// Publish публикует сообщение в указанный канал
func (p *RedisPubSub) Publish(channel string, message []byte) error {
	cmd := p.client.Publish(p.ctx, channel, message)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}
	log.Printf("RedisPubSub: Published message to channel '%s' (Subscribers: %d)", channel, cmd.Val())
	return nil
}

// Close прерывает публикации в процессе. Клиент остается открытым.
func (p *RedisPubSub) Close() error {
	p.cancel()
	log.Println("RedisPubSub: Closed.")
	return nil
}
