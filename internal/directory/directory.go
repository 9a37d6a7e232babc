// Package directory serves account lookups and reference data for the
// editing flows. Lookups run on every owner-email change while staff
// type, so results are cached in-process (bigcache) with a shared
// redis layer behind it before falling through to the backend.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/assistenza/helpdesk-gateway/internal/backend"
	"github.com/assistenza/helpdesk-gateway/internal/domain"
)

const keyPrefix = "helpdesk:refdata:"

// Directory resolves accounts and reference lists.
type Directory struct {
	client backend.Client
	redis  *redis.Client
	local  *bigcache.BigCache
	ttl    time.Duration
	logger *zap.Logger
}

// New builds a directory. redisClient may be nil; the in-process cache
// still applies.
func New(client backend.Client, redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) (*Directory, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	local, err := bigcache.New(context.Background(), bigcache.DefaultConfig(ttl))
	if err != nil {
		return nil, err
	}
	return &Directory{
		client: client,
		redis:  redisClient,
		local:  local,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func (d *Directory) cachedGet(ctx context.Context, key string) ([]byte, bool) {
	if data, err := d.local.Get(key); err == nil {
		return data, true
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		d.logger.Debug("local cache read failed", zap.String("key", key), zap.Error(err))
	}
	if d.redis == nil {
		return nil, false
	}
	data, err := d.redis.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			d.logger.Debug("redis read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	_ = d.local.Set(key, data)
	return data, true
}

func (d *Directory) cachedSet(ctx context.Context, key string, data []byte) {
	_ = d.local.Set(key, data)
	if d.redis == nil {
		return
	}
	if err := d.redis.Set(ctx, keyPrefix+key, data, d.ttl).Err(); err != nil {
		d.logger.Debug("redis write failed", zap.String("key", key), zap.Error(err))
	}
}

// Staff lists every assignable staff account.
func (d *Directory) Staff(ctx context.Context) ([]domain.Account, error) {
	const key = "staff"
	if data, ok := d.cachedGet(ctx, key); ok {
		var accounts []domain.Account
		if err := json.Unmarshal(data, &accounts); err == nil {
			return accounts, nil
		}
	}
	accounts, err := d.client.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(accounts); err == nil {
		d.cachedSet(ctx, key, data)
	}
	return accounts, nil
}

// UsersByRole lists accounts holding the given role.
func (d *Directory) UsersByRole(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	key := "users:" + string(role)
	if data, ok := d.cachedGet(ctx, key); ok {
		var accounts []domain.Account
		if err := json.Unmarshal(data, &accounts); err == nil {
			return accounts, nil
		}
	}
	accounts, err := d.client.ListUsersByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(accounts); err == nil {
		d.cachedSet(ctx, key, data)
	}
	return accounts, nil
}

// ResolveByEmail finds the account behind an owner email, searching
// USER accounts first and staff second. found is false when the email
// is not registered.
func (d *Directory) ResolveByEmail(ctx context.Context, email string) (domain.Account, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Account{}, false, nil
	}
	users, err := d.UsersByRole(ctx, domain.RoleUser)
	if err != nil {
		return domain.Account{}, false, err
	}
	for _, account := range users {
		if strings.EqualFold(account.Email, email) {
			return account, true, nil
		}
	}
	staff, err := d.Staff(ctx)
	if err != nil {
		return domain.Account{}, false, err
	}
	for _, account := range staff {
		if strings.EqualFold(account.Email, email) {
			return account, true, nil
		}
	}
	return domain.Account{}, false, nil
}

// Categories lists ticket categories.
func (d *Directory) Categories(ctx context.Context) ([]domain.Category, error) {
	const key = "categories"
	if data, ok := d.cachedGet(ctx, key); ok {
		var categories []domain.Category
		if err := json.Unmarshal(data, &categories); err == nil {
			return categories, nil
		}
	}
	categories, err := d.client.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(categories); err == nil {
		d.cachedSet(ctx, key, data)
	}
	return categories, nil
}

// ServicesByCategory lists support services for a category.
func (d *Directory) ServicesByCategory(ctx context.Context, categoryID string) ([]domain.SupportService, error) {
	key := "services:" + categoryID
	if data, ok := d.cachedGet(ctx, key); ok {
		var services []domain.SupportService
		if err := json.Unmarshal(data, &services); err == nil {
			return services, nil
		}
	}
	services, err := d.client.ListServicesByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(services); err == nil {
		d.cachedSet(ctx, key, data)
	}
	return services, nil
}

// Close releases the in-process cache.
func (d *Directory) Close() {
	if d != nil && d.local != nil {
		_ = d.local.Close()
	}
}
