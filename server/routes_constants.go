package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Starts a login and redirects to Discord's consent screen
	RouteIndex = "/"

	// Discord API Routes
	RouteCallback = "/api/discord/callback"
	RouteRefresh  = "/api/discord/refresh"

	// Prometheus scrape endpoint
	RouteMetrics = "/metrics"
)
