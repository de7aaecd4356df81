package lock

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"PartyTonight-App/internal/infrastructure/logger"
)

func TestNewRedisLocker(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	t.Run("TTLが0以下の場合はエラー", func(t *testing.T) {
		for _, ttl := range []time.Duration{0, -time.Second} {
			l, err := NewRedisLocker(client, ttl, logger.Nop())
			assert.Error(t, err)
			assert.Nil(t, l)
		}
	})
}
