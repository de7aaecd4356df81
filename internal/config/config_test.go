package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnv(t *testing.T) {
	t.Run("未設定の場合はデフォルト値", func(t *testing.T) {
		cfg, err := FromEnv(envOf(nil))
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, StoreMemory, cfg.StoreBackend)
		assert.Equal(t, LockLocal, cfg.LockBackend)
		assert.Equal(t, 16093.44, cfg.SearchRadiusMeters)
		assert.Equal(t, 40, cfg.MaxResults)
		assert.Equal(t, 16*time.Hour, cfg.MaxPartyAge)
		assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 15*time.Second, cfg.LockTTL)
	})

	t.Run("環境変数で上書きできる", func(t *testing.T) {
		cfg, err := FromEnv(envOf(map[string]string{
			"PORT":                       "9090",
			"PARTY_STORE_BACKEND":        "Postgres",
			"PARTY_LOCK_BACKEND":         "redis",
			"DATABASE_URL":               "postgres://localhost/parties",
			"REDIS_ADDR":                 "localhost:6379",
			"REDIS_DB":                   "2",
			"PARTY_SEARCH_RADIUS_METERS": "5000",
			"PARTY_MAX_RESULTS":          "10",
			"PARTY_MAX_AGE_HOURS":        "1.5",
			"REQUEST_TIMEOUT":            "3s",
		}))
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Port)
		assert.Equal(t, StorePostgres, cfg.StoreBackend)
		assert.Equal(t, LockRedis, cfg.LockBackend)
		assert.Equal(t, 2, cfg.RedisDB)
		assert.Equal(t, 5000.0, cfg.SearchRadiusMeters)
		assert.Equal(t, 10, cfg.MaxResults)
		assert.Equal(t, 90*time.Minute, cfg.MaxPartyAge)
		assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	})

	t.Run("ロックのTTLはタイムアウトより長ければよい", func(t *testing.T) {
		cfg, err := FromEnv(envOf(map[string]string{
			"LOCK_TTL":        "4s",
			"REQUEST_TIMEOUT": "3s",
		}))
		require.NoError(t, err)
		assert.Equal(t, 4*time.Second, cfg.LockTTL)
	})

	t.Run("不正な値はエラー", func(t *testing.T) {
		tests := map[string]map[string]string{
			"数値でない件数":          {"PARTY_MAX_RESULTS": "many"},
			"負の件数":             {"PARTY_MAX_RESULTS": "-1"},
			"半径が0":             {"PARTY_SEARCH_RADIUS_METERS": "0"},
			"不正な期間":            {"REQUEST_TIMEOUT": "soon"},
			"不明なストア":           {"PARTY_STORE_BACKEND": "mongo"},
			"不明なロック":           {"PARTY_LOCK_BACKEND": "zookeeper"},
			"postgresにDSNがない":  {"PARTY_STORE_BACKEND": "postgres"},
			"firestoreにプロジェクトがない": {"PARTY_STORE_BACKEND": "firestore"},
			"supabaseにキーがない":   {"PARTY_STORE_BACKEND": "supabase", "SUPABASE_URL": "https://x.supabase.co"},
			"redisにアドレスがない":    {"PARTY_LOCK_BACKEND": "redis"},
			"ロックのTTLが0":        {"LOCK_TTL": "0s"},
			"ロックのTTLが負":        {"LOCK_TTL": "-1s"},
			"ロックのTTLがタイムアウト以下": {"LOCK_TTL": "10s", "REQUEST_TIMEOUT": "10s"},
			"ロックのTTLがタイムアウトより短い": {"LOCK_TTL": "5s"},
		}
		for name, env := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := FromEnv(envOf(env))
				assert.Error(t, err)
			})
		}
	})
}
