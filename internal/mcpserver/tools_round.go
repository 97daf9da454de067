package mcpserver

import (
	"context"

	"balloon-duel/internal/app/duel"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerRoundTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"confirm_start",
			mcp.WithDescription("Confirm readiness. The round starts once both seats confirm."),
			mcp.WithString("player", mcp.Required(), mcp.Description("Wallet address of a seated player")),
			mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
		),
		s.handleConfirmStart,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"inflate",
			mcp.WithDescription("Grow your balloon during the round."),
			mcp.WithString("player", mcp.Required(), mcp.Description("Wallet address of a seated player")),
			mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
			mcp.WithNumber("delta", mcp.Required(), mcp.Description("Positive size increment")),
		),
		s.handleInflate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit",
			mcp.WithDescription("Lock in a final balloon size. The size closest to the hidden target wins."),
			mcp.WithString("player", mcp.Required(), mcp.Description("Wallet address of a seated player")),
			mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
			mcp.WithNumber("final_size", mcp.Required(), mcp.Description("Final size, at least the current balloon size")),
		),
		s.handleSubmit,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"cancel_room",
			mcp.WithDescription("Creator cancels a room nobody joined; the stake is refunded."),
			mcp.WithString("player", mcp.Required(), mcp.Description("Wallet address of the creator")),
			mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
		),
		s.handleCancelRoom,
	)
}

func (s *Server) handleConfirmStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, errRes := requirePlayer(request)
	if errRes != nil {
		return errRes, nil
	}
	roomID, errRes := requireRoomID(request)
	if errRes != nil {
		return errRes, nil
	}
	room, err := s.svc.ConfirmStart(ctx, roomID, player)
	return roomResult(room, err), nil
}

func (s *Server) handleInflate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, errRes := requirePlayer(request)
	if errRes != nil {
		return errRes, nil
	}
	roomID, errRes := requireRoomID(request)
	if errRes != nil {
		return errRes, nil
	}
	delta, err := request.RequireFloat("delta")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	room, err := s.svc.Inflate(ctx, roomID, player, duel.InflateRequest{Delta: delta})
	return roomResult(room, err), nil
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, errRes := requirePlayer(request)
	if errRes != nil {
		return errRes, nil
	}
	roomID, errRes := requireRoomID(request)
	if errRes != nil {
		return errRes, nil
	}
	finalSize, err := request.RequireFloat("final_size")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	room, err := s.svc.Submit(ctx, roomID, player, duel.SubmitRequest{FinalSize: finalSize})
	return roomResult(room, err), nil
}

func (s *Server) handleCancelRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, errRes := requirePlayer(request)
	if errRes != nil {
		return errRes, nil
	}
	roomID, errRes := requireRoomID(request)
	if errRes != nil {
		return errRes, nil
	}
	room, err := s.svc.CancelRoom(ctx, roomID, player)
	return roomResult(room, err), nil
}
