package api

import "portfolio-proxy/internal/httpx"

// Routes returns a registrar wiring the proxy endpoints under /api.
func Routes(h *Handler) httpx.RouteRegistrar {
	return func(a *httpx.App) {
		g := a.Group("/api")
		g.GET("/github-contributions", h.GitHubContributions)
		g.GET("/roblox/games", h.RobloxGames)
	}
}
