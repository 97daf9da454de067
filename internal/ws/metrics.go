package ws

import "expvar"

var (
	metricConnectionsTotal  = expvar.NewInt("ws_room_connections_total")
	metricConnectionsActive = expvar.NewInt("ws_room_connections_active")
	metricActionsTotal      = expvar.NewMap("ws_room_actions_total")
)
