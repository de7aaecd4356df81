// Package config はアプリケーション設定を環境変数から読み込む
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"PartyTonight-App/internal/domain/model"
)

// ストアのバックエンド
const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
	StoreSupabase  = "supabase"
	StoreSQLite    = "sqlite"
)

// ロックのバックエンド
const (
	LockLocal    = "local"
	LockRedis    = "redis"
	LockPostgres = "postgres"
)

// Config アプリケーション設定
type Config struct {
	Port    string
	LogMode string

	StoreBackend string
	LockBackend  string

	SearchRadiusMeters float64
	MaxResults         int
	MaxPartyAge        time.Duration

	RequestTimeout time.Duration
	LockTTL        time.Duration

	DatabaseURL        string
	SupabaseURL        string
	SupabaseAnonKey    string
	FirestoreProjectID string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	SQLitePath         string
}

// Load .envファイル（あれば）と環境変数から設定を読み込む
// .envが見つからないことはエラーにしない
func Load() (*Config, bool, error) {
	envLoaded := godotenv.Load() == nil
	cfg, err := FromEnv(os.Getenv)
	return cfg, envLoaded, err
}

// FromEnv getenvから設定を組み立てて検証する
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		Port:               r.getString("PORT", "8080"),
		LogMode:            r.getString("LOG_MODE", "dev"),
		StoreBackend:       strings.ToLower(r.getString("PARTY_STORE_BACKEND", StoreMemory)),
		LockBackend:        strings.ToLower(r.getString("PARTY_LOCK_BACKEND", LockLocal)),
		SearchRadiusMeters: r.getFloat("PARTY_SEARCH_RADIUS_METERS", model.DefaultSearchRadiusMeters),
		MaxResults:         r.getInt("PARTY_MAX_RESULTS", model.DefaultMaxResults),
		MaxPartyAge:        time.Duration(r.getFloat("PARTY_MAX_AGE_HOURS", model.DefaultMaxPartyAge.Hours()) * float64(time.Hour)),
		RequestTimeout:     r.getDuration("REQUEST_TIMEOUT", 10*time.Second),
		LockTTL:            r.getDuration("LOCK_TTL", 15*time.Second),
		DatabaseURL:        r.getString("DATABASE_URL", ""),
		SupabaseURL:        r.getString("SUPABASE_URL", ""),
		SupabaseAnonKey:    r.getString("SUPABASE_ANON_KEY", ""),
		FirestoreProjectID: r.getString("FIRESTORE_PROJECT_ID", ""),
		RedisAddr:          r.getString("REDIS_ADDR", ""),
		RedisPassword:      r.getString("REDIS_PASSWORD", ""),
		RedisDB:            r.getInt("REDIS_DB", 0),
		SQLitePath:         r.getString("SQLITE_PATH", "parties.db"),
	}

	if r.err != nil {
		return nil, r.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 設定値の組み合わせをチェック
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("PARTY_STORE_BACKEND=postgres にはDATABASE_URLが必要です")
		}
	case StoreFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("PARTY_STORE_BACKEND=firestore にはFIRESTORE_PROJECT_IDが必要です")
		}
	case StoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("PARTY_STORE_BACKEND=supabase にはSUPABASE_URLとSUPABASE_ANON_KEYが必要です")
		}
	default:
		return fmt.Errorf("不明なPARTY_STORE_BACKENDです: %q", c.StoreBackend)
	}

	switch c.LockBackend {
	case LockLocal:
	case LockRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("PARTY_LOCK_BACKEND=redis にはREDIS_ADDRが必要です")
		}
	case LockPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("PARTY_LOCK_BACKEND=postgres にはDATABASE_URLが必要です")
		}
	default:
		return fmt.Errorf("不明なPARTY_LOCK_BACKENDです: %q", c.LockBackend)
	}

	if c.SearchRadiusMeters <= 0 {
		return fmt.Errorf("PARTY_SEARCH_RADIUS_METERSは正の値で指定してください")
	}
	if c.MaxResults < 0 {
		return fmt.Errorf("PARTY_MAX_RESULTSは0以上で指定してください")
	}
	if c.MaxPartyAge <= 0 {
		return fmt.Errorf("PARTY_MAX_AGE_HOURSは正の値で指定してください")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUTは正の値で指定してください")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTLは正の値で指定してください")
	}
	// ロックはリクエストの処理中に失効してはならない
	if c.LockTTL <= c.RequestTimeout {
		return fmt.Errorf("LOCK_TTL (%s) はREQUEST_TIMEOUT (%s) より長く指定してください", c.LockTTL, c.RequestTimeout)
	}
	return nil
}

// reader 最初に見つかったパースエラーを保持する
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) getString(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) getInt(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *reader) getFloat(key string, def float64) float64 {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

func (r *reader) getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *reader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%sの値が不正です (%q): %w", key, value, err)
	}
}
