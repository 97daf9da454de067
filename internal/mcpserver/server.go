package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"balloon-duel/internal/app/duel"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const roomStateURIPrefix = "room://"
const roomStateURISuffix = "/state"

type Server struct {
	svc *duel.Service

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(svc *duel.Service) *Server {
	mcpSrv := server.NewMCPServer(
		"balloon-duel",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		svc:        svc,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerLobbyTools()
	s.registerRoundTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			roomStateURIPrefix+"{room_id}"+roomStateURISuffix,
			"room_state",
			mcp.WithTemplateDescription("Client snapshot of a duel room; the target stays hidden until the round resolves"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := string(request.Params.URI)
			if !strings.HasPrefix(raw, roomStateURIPrefix) || !strings.HasSuffix(raw, roomStateURISuffix) {
				return nil, nil
			}
			roomID := strings.TrimSuffix(strings.TrimPrefix(raw, roomStateURIPrefix), roomStateURISuffix)
			if roomID == "" {
				return nil, nil
			}
			room, err := s.svc.GetRoom(ctx, roomID)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(room)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}

func requirePlayer(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	player, err := request.RequireString("player")
	if err != nil {
		return "", toolError("invalid_request", err.Error())
	}
	player = strings.TrimSpace(player)
	if player == "" {
		return "", toolError("invalid_request", "player is required")
	}
	return player, nil
}

func requireRoomID(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	roomID, err := request.RequireString("room_id")
	if err != nil {
		return "", toolError("invalid_request", err.Error())
	}
	return strings.TrimSpace(roomID), nil
}
