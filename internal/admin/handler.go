// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/auth-backend/internal/cache"
	"github.com/carterperez-dev/templates/auth-backend/internal/core"
	"github.com/carterperez-dev/templates/auth-backend/internal/middleware"
	"github.com/carterperez-dev/templates/auth-backend/internal/user"
)

type Promoter interface {
	PromoteToAdmin(ctx context.Context, targetID, requesterID string) (*user.User, error)
}

type Handler struct {
	dbStats      func() sql.DBStats
	redisStats   func() *redis.PoolStats
	redisPing    func(ctx context.Context) error
	dbPing       func(ctx context.Context) error
	usersByRole  func(ctx context.Context) (map[string]int, error)
	activeTokens func(ctx context.Context) (int, error)
	cacheStats   func() []cache.PrefixStats
	promoter     Promoter
	logger       *slog.Logger
}

type HandlerConfig struct {
	DBStats      func() sql.DBStats
	RedisStats   func() *redis.PoolStats
	RedisPing    func(ctx context.Context) error
	DBPing       func(ctx context.Context) error
	UsersByRole  func(ctx context.Context) (map[string]int, error)
	ActiveTokens func(ctx context.Context) (int, error)
	CacheStats   func() []cache.PrefixStats
	Promoter     Promoter
	Logger       *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		dbStats:      cfg.DBStats,
		redisStats:   cfg.RedisStats,
		redisPing:    cfg.RedisPing,
		dbPing:       cfg.DBPing,
		usersByRole:  cfg.UsersByRole,
		activeTokens: cfg.ActiveTokens,
		cacheStats:   cfg.CacheStats,
		promoter:     cfg.Promoter,
		logger:       cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/users/{userID}/promote", h.PromoteUser)
		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/cache", h.GetCacheStats)
		r.Get("/stats/db", h.GetDatabaseStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
	})
}

func (h *Handler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userID")
	requesterID := middleware.GetUserID(r.Context())

	u, err := h.promoter.PromoteToAdmin(r.Context(), targetID, requesterID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, user.ToUserResponse(u))
}

func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := []cache.PrefixStats{}
	if h.cacheStats != nil {
		stats = h.cacheStats()
	}
	core.OK(w, stats)
}

func (h *Handler) getAccountStats(ctx context.Context) *AccountStats {
	stats := &AccountStats{UsersByRole: map[string]int{}}

	if h.usersByRole != nil {
		byRole, err := h.usersByRole(ctx)
		if err != nil {
			h.logger.WarnContext(ctx, "count users failed", "error", err)
		} else {
			stats.UsersByRole = byRole
			for _, n := range byRole {
				stats.TotalUsers += n
			}
		}
	}

	if h.activeTokens != nil {
		n, err := h.activeTokens(ctx)
		if err != nil {
			h.logger.WarnContext(ctx, "count refresh tokens failed", "error", err)
		} else {
			stats.ActiveRefreshTokens = n
		}
	}

	return stats
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbHealthy := true
	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			dbHealthy = false
		}
	}

	redisHealthy := true
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			redisHealthy = false
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: dbHealthy,
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: redisHealthy,
			Stats:   h.getRedisStats(),
		},
		Runtime: RuntimeStats{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			NumCPU:       runtime.NumCPU(),
			MemAlloc:     memStats.Alloc,
			MemSys:       memStats.Sys,
			NumGC:        memStats.NumGC,
		},
		Accounts: h.getAccountStats(ctx),
	}

	core.OK(w, response)
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}

	core.OK(w, response)
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
	Accounts *AccountStats  `json:"accounts"`
}

type AccountStats struct {
	TotalUsers          int            `json:"total_users"`
	UsersByRole         map[string]int `json:"users_by_role"`
	ActiveRefreshTokens int            `json:"active_refresh_tokens"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxIdleTimeClosed  int64  `json:"max_idle_time_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
