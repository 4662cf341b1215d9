package server

// Route path constants
const (
	// OAuth2 endpoints
	RouteOAuthAuthorize  = "/oauth/authorize"
	RouteOAuthToken      = "/oauth/token"
	RouteOAuthCheckToken = "/oauth/check_token"
	RouteOAuthTokenKey   = "/oauth/token_key"
	RouteOAuthRevoke     = "/oauth/revoke"

	// Grant events pushed to connected websocket clients
	RouteOAuthEvents = "/oauth/events"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
