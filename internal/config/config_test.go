package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("FEED_CACHE_TTL", "")
	t.Setenv("JWT_ACCESS_EXPIRY", "")
	t.Setenv("LOG_RETENTION_DAYS", "")

	cfg := Load()

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 30*time.Second, cfg.FeedCacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessExpiry)
	assert.Equal(t, 30, cfg.LogRetentionDays)
}

func TestLoadOverridesAndBadValues(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("FEED_CACHE_TTL", "not-a-duration")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_RETENTION_DAYS", "seven")

	cfg := Load()

	assert.Equal(t, StoreDriverMongo, cfg.StoreDriver)
	assert.Equal(t, 30*time.Second, cfg.FeedCacheTTL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 30, cfg.LogRetentionDays)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: "5433", DBUser: "u", DBPassword: "p", DBName: "civic", DBSSLMode: "require"}
	assert.Equal(t, "host=db user=u password=p dbname=civic port=5433 sslmode=require TimeZone=UTC", cfg.DSN())
}
