package http

// Route patterns for the monitor HTTP surface.
const (
	routeManagers    = "/v1/managers"
	routeManagerByID = "/v1/managers/{id}"
	routeStopManager = "/v1/managers/{id}/stop"
)

// Route names for mux URL building.
const (
	routeNameManagers    = "monitor_managers"
	routeNameManagerByID = "monitor_manager_by_id"
	routeNameStopManager = "monitor_stop_manager"
)
