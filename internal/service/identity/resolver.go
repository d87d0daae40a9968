package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/materialbot/internal/cache"
	"github.com/mamadbah2/materialbot/internal/config"
	"github.com/mamadbah2/materialbot/internal/repository/sheets"
)

// Options locate the users sheet and its cache entry.
type Options struct {
	Sheet       string
	CacheKey    string
	CacheTTL    time.Duration
	UnknownName string
}

// OptionsFromCatalog resolves Options from runtime configuration.
func OptionsFromCatalog(catalog *config.Catalog) Options {
	return Options{
		Sheet:       catalog.String(config.KeySheetUsers, "Users"),
		CacheKey:    catalog.String(config.KeyCacheUsers, "users_map"),
		CacheTTL:    catalog.Duration(config.KeyCacheUsersTTL, 3600),
		UnknownName: catalog.String(config.KeyDefaultUnknownUser, "Unknown user"),
	}
}

// Resolver maps gateway user ids to display names through the users sheet.
type Resolver struct {
	repo   sheets.Repository
	cache  cache.Cache
	opts   Options
	logger *zap.Logger
}

// NewResolver builds a resolver.
func NewResolver(repository sheets.Repository, c cache.Cache, opts Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.NewMemory()
	}
	if opts.UnknownName == "" {
		opts.UnknownName = "Unknown user"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &Resolver{repo: repository, cache: c, opts: opts, logger: logger}
}

// DisplayName returns the registered name of userID. Unknown users are
// registered with profileHint, the name the gateway delivered with the event.
// It never fails; lookup problems fall back to the hint or the unknown name.
func (r *Resolver) DisplayName(ctx context.Context, userID, profileHint string) string {
	profileHint = strings.TrimSpace(profileHint)

	users, err := r.users(ctx)
	if err != nil {
		r.logger.Warn("users lookup failed", zap.String("user_id", userID), zap.Error(err))
		if profileHint != "" {
			return profileHint
		}
		return r.opts.UnknownName
	}
	if name, ok := users[userID]; ok && name != "" {
		return name
	}
	if profileHint == "" {
		return r.opts.UnknownName
	}

	if err := r.repo.AppendRow(ctx, r.opts.Sheet, []interface{}{userID, profileHint}); err != nil {
		r.logger.Warn("failed to register user", zap.String("user_id", userID), zap.Error(err))
		return profileHint
	}
	if err := r.cache.Delete(ctx, r.opts.CacheKey); err != nil {
		r.logger.Warn("users cache invalidation failed", zap.Error(err))
	}
	r.logger.Info("new user registered", zap.String("user_id", userID), zap.String("name", profileHint))
	return profileHint
}

func (r *Resolver) users(ctx context.Context) (map[string]string, error) {
	if raw, ok, err := r.cache.Get(ctx, r.opts.CacheKey); err == nil && ok {
		var users map[string]string
		if err := json.Unmarshal(raw, &users); err == nil {
			return users, nil
		}
	}

	rows, err := r.repo.ReadRows(ctx, r.opts.Sheet)
	if err != nil {
		return nil, fmt.Errorf("read users sheet: %w", err)
	}

	users := make(map[string]string, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id != "" {
			users[id] = strings.TrimSpace(fmt.Sprint(row[1]))
		}
	}

	if raw, err := json.Marshal(users); err == nil {
		if err := r.cache.Set(ctx, r.opts.CacheKey, raw, r.opts.CacheTTL); err != nil {
			r.logger.Warn("users cache write failed", zap.Error(err))
		}
	}
	return users, nil
}
