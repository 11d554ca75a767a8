package server

func (s *Server) initRoutes() {
	// {$} keeps "/" from matching every unknown path
	s.RegisterRouteHandler("GET "+RouteIndex+"{$}", ChainMiddleware(s.IndexHandler(), s.FlowMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.FlowMiddleware()...))

	// Refresh is also reachable with POST since it changes server state
	s.RegisterRouteHandler("GET "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteRefresh, ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))

	if s.instrumentation != nil && s.instrumentation.Handler() != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.instrumentation.Handler())
	}
}
