package msgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

const directoryKeyPrefix = "graph:user_email:"

// Directory resolves Graph user ids to primary email addresses. Lookups are
// memoized in-process for the lifetime of the Directory and, when a redis
// client is supplied, shared across processes with a TTL.
type Directory struct {
	log    *logger.Logger
	client *Client
	rdb    *redis.Client
	ttl    time.Duration

	mu    sync.RWMutex
	local map[string]string
}

// NewRedisFromEnv builds the shared cache client from REDIS_ADDR. Returns
// nil when the variable is unset, which Directory treats as cache-off.
func NewRedisFromEnv(log *logger.Logger) *redis.Client {
	addr := strings.TrimSpace(utils.GetEnv("REDIS_ADDR", "", log))
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: utils.GetEnv("REDIS_PASSWORD", "", log),
		DB:       utils.GetEnvAsInt("REDIS_DB", 0, log),
	})
}

func NewDirectory(client *Client, rdb *redis.Client, log *logger.Logger) (*Directory, error) {
	if client == nil {
		return nil, fmt.Errorf("graph client required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	l := log.With("service", "GraphDirectory")
	ttlHours := utils.GetEnvAsInt("GRAPH_DIRECTORY_CACHE_TTL_HOURS", 12, l)
	return &Directory{
		log:    l,
		client: client,
		rdb:    rdb,
		ttl:    time.Duration(ttlHours) * time.Hour,
		local:  make(map[string]string),
	}, nil
}

// UserEmail returns the lowercased primary address for a Graph user id,
// preferring mail over userPrincipalName. Unknown users resolve to "".
func (d *Directory) UserEmail(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}

	d.mu.RLock()
	email, hit := d.local[userID]
	d.mu.RUnlock()
	if hit {
		return email, nil
	}

	if d.rdb != nil {
		cached, err := d.rdb.Get(ctx, directoryKeyPrefix+userID).Result()
		if err == nil {
			d.store(userID, cached)
			return cached, nil
		}
		if err != redis.Nil {
			d.log.Warn("directory cache read failed", "user_id", userID, "error", err)
		}
	}

	user, err := d.client.GetUser(ctx, userID)
	if err != nil {
		var httpErr *graphHTTPError
		if errors.As(err, &httpErr) && httpErr.statusCode == 404 {
			d.store(userID, "")
			return "", nil
		}
		return "", err
	}

	email = strings.ToLower(strings.TrimSpace(user.Mail))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(user.UserPrincipalName))
	}
	d.store(userID, email)

	if d.rdb != nil {
		if err := d.rdb.Set(ctx, directoryKeyPrefix+userID, email, d.ttl).Err(); err != nil {
			d.log.Warn("directory cache write failed", "user_id", userID, "error", err)
		}
	}
	return email, nil
}

func (d *Directory) store(userID, email string) {
	d.mu.Lock()
	d.local[userID] = email
	d.mu.Unlock()
}
