// Package roblox resolves place identifiers to universe identifiers and
// fetches game metadata and thumbnails in batches. Universe resolution is
// the rate-limit-sensitive step and is serialized through a pacer; the two
// batch calls have no such sensitivity and run concurrently.
package roblox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"portfolio-proxy/internal/httpx"
	"portfolio-proxy/internal/upstream"
)

// Catalog is the game-catalog response envelope: the two upstream result
// documents passed through side by side, merged by position upstream.
type Catalog struct {
	Details    json.RawMessage `json:"details"`
	Thumbnails json.RawMessage `json:"thumbnails"`
	IsFallback bool            `json:"is_fallback"`
}

const (
	defaultUniverseURL   = "https://apis.roblox.com"
	defaultGamesURL      = "https://games.roblox.com"
	defaultThumbnailsURL = "https://thumbnails.roblox.com"

	thumbnailSize   = "512x512"
	thumbnailFormat = "Png"
)

// Client talks to the three Roblox API hosts.
type Client struct {
	universes  *httpx.Client
	games      *httpx.Client
	thumbnails *httpx.Client
	pacer      *upstream.Pacer
	logger     *log.Logger

	universeURL   string
	gamesURL      string
	thumbnailsURL string
	timeout       time.Duration
	pace          time.Duration
}

type Option func(*Client)

// WithBaseURLs overrides the three upstream hosts (tests point these at a
// local server).
func WithBaseURLs(universeURL, gamesURL, thumbnailsURL string) Option {
	return func(c *Client) {
		if universeURL != "" {
			c.universeURL = universeURL
		}
		if gamesURL != "" {
			c.gamesURL = gamesURL
		}
		if thumbnailsURL != "" {
			c.thumbnailsURL = thumbnailsURL
		}
	}
}

// WithTimeout bounds each outbound call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPace sets the minimum interval between universe resolutions.
func WithPace(d time.Duration) Option {
	return func(c *Client) { c.pace = d }
}

// WithLogger overrides the package logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		universeURL:   defaultUniverseURL,
		gamesURL:      defaultGamesURL,
		thumbnailsURL: defaultThumbnailsURL,
		timeout:       10 * time.Second,
		pace:          100 * time.Millisecond,
		logger:        log.New("roblox"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.universes = httpx.NewClient(httpx.WithBaseURL(c.universeURL), httpx.WithClientTimeout(c.timeout))
	c.games = httpx.NewClient(httpx.WithBaseURL(c.gamesURL), httpx.WithClientTimeout(c.timeout))
	c.thumbnails = httpx.NewClient(httpx.WithBaseURL(c.thumbnailsURL), httpx.WithClientTimeout(c.timeout))
	c.pacer = upstream.NewPacer(c.pace)
	return c
}

// ResolveUniverse maps a place (game) identifier to its universe
// identifier. Calls are paced to stay under the upstream rate limit.
func (c *Client) ResolveUniverse(ctx context.Context, gameID string) (int64, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return 0, err
	}

	var out struct {
		UniverseID int64 `json:"universeId"`
	}
	resp, err := c.universes.Get(ctx, fmt.Sprintf("/universes/v1/places/%s/universe", gameID), &out)
	if err != nil {
		return 0, upstream.Errorf(statusOf(resp), "universe lookup for game %s failed: %v", gameID, err)
	}
	if out.UniverseID == 0 {
		return 0, upstream.Errorf(resp.StatusCode(), "universe lookup for game %s returned no universeId", gameID)
	}
	return out.UniverseID, nil
}

// FetchCatalog retrieves game details and thumbnail icons for the resolved
// universe identifiers. The two batch calls run concurrently; either
// failing fails the catalog as a whole (the caller degrades to a fallback).
func (c *Client) FetchCatalog(ctx context.Context, universeIDs []int64) (*Catalog, error) {
	param := joinIDs(universeIDs)

	var details, thumbnails json.RawMessage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := c.games.Get(gctx, "/v1/games", nil, httpx.WithQuery(map[string]string{"universeIds": param}))
		if err != nil {
			return upstream.Errorf(statusOf(resp), "game details lookup failed: %v", err)
		}
		details = append(json.RawMessage(nil), resp.Body()...)
		return nil
	})
	g.Go(func() error {
		resp, err := c.thumbnails.Get(gctx, "/v1/games/icons", nil, httpx.WithQuery(map[string]string{
			"universeIds": param,
			"size":        thumbnailSize,
			"format":      thumbnailFormat,
		}))
		if err != nil {
			return upstream.Errorf(statusOf(resp), "thumbnail lookup failed: %v", err)
		}
		thumbnails = append(json.RawMessage(nil), resp.Body()...)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Catalog{Details: details, Thumbnails: thumbnails}, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func statusOf(resp *resty.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}
