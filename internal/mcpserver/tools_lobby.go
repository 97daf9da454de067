package mcpserver

import (
	"context"

	"balloon-duel/internal/app/duel"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerLobbyTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_room",
			mcp.WithDescription("Open a duel room and lock the creator's stake."),
			mcp.WithString("player", mcp.Required(), mcp.Description("Wallet address of the creator")),
			mcp.WithNumber("stake", mcp.Required(), mcp.Description("Stake each player puts in")),
			mcp.WithNumber("target_min", mcp.Description("Lower bound of the hidden target, default from server config")),
			mcp.WithNumber("target_max", mcp.Description("Upper bound of the hidden target, default from server config")),
			mcp.WithString("stake_tx", mcp.Description("Reference of a stake already locked on chain")),
		),
		s.handleCreateRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"join_room",
			mcp.WithDescription("Take the opponent seat of a waiting room."),
			mcp.WithString("player", mcp.Required(), mcp.Description("Wallet address of the opponent")),
			mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
			mcp.WithString("stake_tx", mcp.Description("Reference of a stake already locked on chain")),
		),
		s.handleJoinRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_room",
			mcp.WithDescription("Current room snapshot."),
			mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
		),
		s.handleGetRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_waiting_rooms",
			mcp.WithDescription("Rooms waiting for an opponent, newest first."),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 500")),
			mcp.WithNumber("offset", mcp.Description("Page offset, default 0")),
		),
		s.handleListWaitingRooms,
	)
}

func (s *Server) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, errRes := requirePlayer(request)
	if errRes != nil {
		return errRes, nil
	}
	stake, err := request.RequireFloat("stake")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	room, err := s.svc.CreateRoom(ctx, player, duel.CreateRoomRequest{
		Stake:     stake,
		TargetMin: request.GetFloat("target_min", 0),
		TargetMax: request.GetFloat("target_max", 0),
		StakeTx:   request.GetString("stake_tx", ""),
	})
	return roomResult(room, err), nil
}

func (s *Server) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, errRes := requirePlayer(request)
	if errRes != nil {
		return errRes, nil
	}
	roomID, errRes := requireRoomID(request)
	if errRes != nil {
		return errRes, nil
	}
	room, err := s.svc.JoinRoom(ctx, roomID, player, duel.JoinRoomRequest{StakeTx: request.GetString("stake_tx", "")})
	return roomResult(room, err), nil
}

func (s *Server) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, errRes := requireRoomID(request)
	if errRes != nil {
		return errRes, nil
	}
	room, err := s.svc.GetRoom(ctx, roomID)
	return roomResult(room, err), nil
}

func (s *Server) handleListWaitingRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit, offset := clampPagination(request.GetInt("limit", defaultPageLimit), request.GetInt("offset", 0), maxPageLimit)
	out, err := s.svc.ListWaitingRooms(ctx, limit, offset)
	if err != nil {
		return toolError(errorCode(err), err.Error()), nil
	}
	return toolResult(out), nil
}
