// Package api implements the two proxy endpoints. Each request walks the
// same path: validate the required parameter, check the cache, call the
// upstream client, and either cache the genuine payload or respond with a
// synthesized fallback. Upstream trouble never surfaces as an error
// status; only a missing parameter (400) and a total resolution failure
// (404) do.
package api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"portfolio-proxy/internal/cache"
	"portfolio-proxy/internal/github"
	"portfolio-proxy/internal/httpx"
	"portfolio-proxy/internal/roblox"
)

// ContributionsFetcher is the contribution-stats upstream surface.
type ContributionsFetcher interface {
	FetchContributions(ctx context.Context, username string) (*github.Stats, error)
}

// CatalogClient is the game-catalog upstream surface.
type CatalogClient interface {
	ResolveUniverse(ctx context.Context, gameID string) (int64, error)
	FetchCatalog(ctx context.Context, universeIDs []int64) (*roblox.Catalog, error)
}

// Handler serves the proxy endpoints.
type Handler struct {
	store     cache.Store
	github    ContributionsFetcher
	roblox    CatalogClient
	githubTTL time.Duration
	robloxTTL time.Duration
	logger    *log.Logger
}

type Option func(*Handler)

// WithTTLs sets the per-endpoint cache lifetimes.
func WithTTLs(githubTTL, robloxTTL time.Duration) Option {
	return func(h *Handler) {
		if githubTTL > 0 {
			h.githubTTL = githubTTL
		}
		if robloxTTL > 0 {
			h.robloxTTL = robloxTTL
		}
	}
}

// WithLogger overrides the package logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(store cache.Store, gh ContributionsFetcher, rb CatalogClient, opts ...Option) *Handler {
	h := &Handler{
		store:     store,
		github:    gh,
		roblox:    rb,
		githubTTL: time.Hour,
		robloxTTL: time.Hour,
		logger:    log.New("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func contributionsKey(username string) string { return "github-contributions:" + username }
func catalogKey(gameIDs string) string        { return "games-" + gameIDs }
func universeKey(gameID string) string        { return "universe-" + gameID }

func errorBody(msg string) map[string]string { return map[string]string{"error": msg} }

// GitHubContributions proxies contribution statistics for one user.
func (h *Handler) GitHubContributions(c httpx.Context) error {
	username := c.QueryParam("username")
	if username == "" {
		return c.JSON(httpx.StatusBadRequest, errorBody("Missing username parameter"))
	}

	ctx := c.Request().Context()
	key := contributionsKey(username)

	if payload, err := h.store.Get(ctx, key); err == nil {
		return c.JSONBlob(httpx.StatusOK, payload)
	}

	stats, err := h.github.FetchContributions(ctx, username)
	if err != nil {
		h.logger.Warnf("contribution stats for %s degraded to fallback: %v", username, err)
		return c.JSON(httpx.StatusOK, github.Fallback(username))
	}

	if err := cache.SetJSON(ctx, h.store, key, stats, h.githubTTL); err != nil {
		h.logger.Warnf("cache write for %s failed: %v", key, err)
	}
	return c.JSON(httpx.StatusOK, stats)
}

// RobloxGames proxies catalog data for a comma-separated list of game ids.
func (h *Handler) RobloxGames(c httpx.Context) error {
	gameIDs := c.QueryParam("gameIds")
	if gameIDs == "" {
		return c.JSON(httpx.StatusBadRequest, errorBody("Missing gameIds parameter"))
	}

	ctx := c.Request().Context()
	key := catalogKey(gameIDs)

	if payload, err := h.store.Get(ctx, key); err == nil {
		return c.JSONBlob(httpx.StatusOK, payload)
	}

	universeIDs := h.resolveUniverses(ctx, gameIDs)
	if len(universeIDs) == 0 {
		return c.JSON(httpx.StatusNotFound, errorBody("Failed to retrieve any valid universeIds"))
	}

	catalog, err := h.roblox.FetchCatalog(ctx, universeIDs)
	if err != nil {
		h.logger.Warnf("game catalog for %s degraded to fallback: %v", gameIDs, err)
		return c.JSON(httpx.StatusOK, roblox.Fallback(universeIDs))
	}

	if err := cache.SetJSON(ctx, h.store, key, catalog, h.robloxTTL); err != nil {
		h.logger.Warnf("cache write for %s failed: %v", key, err)
	}
	return c.JSON(httpx.StatusOK, catalog)
}

// resolveUniverses maps each game id to a universe id, reusing cached
// resolutions and tolerating per-id failures.
func (h *Handler) resolveUniverses(ctx context.Context, gameIDs string) []int64 {
	ids := strings.Split(gameIDs, ",")
	universeIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		ukey := universeKey(id)
		if payload, err := h.store.Get(ctx, ukey); err == nil {
			if uid, err := strconv.ParseInt(string(payload), 10, 64); err == nil {
				universeIDs = append(universeIDs, uid)
				continue
			}
		}

		uid, err := h.roblox.ResolveUniverse(ctx, id)
		if err != nil {
			h.logger.Warnf("failed to resolve universe for game %s: %v", id, err)
			continue
		}
		universeIDs = append(universeIDs, uid)

		if err := h.store.Set(ctx, ukey, []byte(strconv.FormatInt(uid, 10)), h.robloxTTL); err != nil {
			h.logger.Warnf("cache write for %s failed: %v", ukey, err)
		}
	}
	return universeIDs
}
