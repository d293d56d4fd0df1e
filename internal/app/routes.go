package app

// registerRoutes sets up all HTTP handlers for the application.
func (a *App) registerRoutes() {
	if a.ws != nil {
		a.Mux.Handle("/ws", a.ws)
	}
	if !a.opts.DisableDashboard {
		a.Mux.HandleFunc("/", a.handleDashboard)
	}
	a.Mux.HandleFunc("/healthz", a.handleHealth)

	// API routes
	a.Mux.HandleFunc("/api/vehicles", a.handleVehicles)
	a.Mux.HandleFunc("/api/control", a.limit(a.handleControl))
}
