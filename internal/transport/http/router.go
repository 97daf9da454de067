package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"balloon-duel/internal/app/duel"
	"balloon-duel/internal/config"
	"balloon-duel/internal/coordinator"
	"balloon-duel/internal/mcpserver"
	"balloon-duel/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func NewRouter(svc *duel.Service, coord *coordinator.Coordinator, st Pinger, cfg config.ServerConfig) *chi.Mux {
	mcpSrv := mcpserver.New(svc)
	wsSrv := ws.NewServer(coord, svc)

	roomHandlers := NewRoomHandlers(svc)
	adminHandlers := NewAdminHandlers(st, svc)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())

	// the request logger wraps the writer, and the upgrade needs the raw hijacker
	r.Get("/ws/rooms/{room_id}", wsSrv.HandleRoom)

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/rooms", roomHandlers.List())
		r.Get("/rooms/{room_id}", roomHandlers.Get())
		r.Get("/rooms/{room_id}/events", RoomEventsHandler(coord))

		r.Group(func(r chi.Router) {
			r.Use(PlayerMiddleware())
			r.Post("/rooms", roomHandlers.Create())
			r.Post("/rooms/{room_id}/join", roomHandlers.Join())
			r.Post("/rooms/{room_id}/confirm", roomHandlers.Confirm())
			r.Post("/rooms/{room_id}/inflate", roomHandlers.Inflate())
			r.Post("/rooms/{room_id}/submit", roomHandlers.Submit())
			r.Post("/rooms/{room_id}/cancel", roomHandlers.Cancel())
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Use(BodyCaptureMiddleware(4096))
			r.Post("/rooms/{room_id}/settlement/retry", adminHandlers.RetrySettlement())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
