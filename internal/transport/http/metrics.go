package httptransport

import "expvar"

var (
	metricRoomActionTotal    = expvar.NewMap("room_action_total")
	metricRequestErrorsTotal = expvar.NewInt("room_request_errors_total")

	metricSSEConnectionsTotal  = expvar.NewInt("room_sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("room_sse_connections_active")
)
