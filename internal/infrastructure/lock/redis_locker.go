package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/infrastructure/logger"
)

const redisKeyPrefix = "partytonight:lock:"

// releaseScript 自分が取得したロックのみを削除する
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript 自分が保持しているロックの期限のみを延長する
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker 複数インスタンス間で座標キーを排他するロック（SET NX PX）
type RedisLocker struct {
	client       *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
	log          *logger.Logger
}

// NewRedisLocker 新しいRedisLockerを作成
// ttlはプロセスが落ちた場合にロックが自動的に解放されるまでの時間。
// 保持中はttlの1/3ごとに期限を延長する
func NewRedisLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) (*RedisLocker, error) {
	if ttl <= 0 {
		return nil, errors.New("RedisロックのTTLは正の値で指定してください")
	}
	return &RedisLocker{
		client:       client,
		ttl:          ttl,
		pollInterval: 20 * time.Millisecond,
		log:          log,
	}, nil
}

// Lock ロックを取得できるまでポーリングする
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	redisKey := redisKeyPrefix + key

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("ロック待機が中断されました (%s): %w", key, ctx.Err())
			}
			return nil, fmt.Errorf("%w: Redisロックの取得に失敗: %v", model.ErrStoreUnavailable, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("ロック待機が中断されました (%s): %w", key, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// 呼び出し元のctxが期限切れでも解放できるように独立したctxを使う
			releaseCtx, cancel := context.WithTimeout(context.Background(), l.ttl)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.log.Warn("Redisロックの解放に失敗", "key", key, "error", err)
			}
		})
	}, nil
}

// keepAlive stopが閉じられるまでロックの期限を延長し続ける
func (l *RedisLocker) keepAlive(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
		n, err := refreshScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			l.log.Warn("Redisロックの延長に失敗", "key", redisKey, "error", err)
		case n == 0:
			l.log.Warn("Redisロックが失効しています", "key", redisKey)
			return
		}
	}
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ロックトークンの生成に失敗: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
