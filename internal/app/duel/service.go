package duel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"balloon-duel/internal/coordinator"
	"balloon-duel/internal/game"
	"balloon-duel/internal/game/viewmodel"
	"balloon-duel/internal/settlement"
	"balloon-duel/internal/store"

	"github.com/rs/zerolog/log"
)

// Service is the client-facing entry point shared by HTTP and MCP. It locks
// stakes before a seat is filled and returns client snapshots.
type Service struct {
	coord   *coordinator.Coordinator
	escrow  settlement.Escrow
	refunds settlement.Gateway
	now     func() time.Time
}

func NewService(coord *coordinator.Coordinator, escrow settlement.Escrow, refunds settlement.Gateway) *Service {
	return &Service{coord: coord, escrow: escrow, refunds: refunds, now: time.Now}
}

func (s *Service) view(room *game.Room) *viewmodel.RoomState {
	if room == nil {
		return nil
	}
	st := viewmodel.BuildRoomState(room, s.now().UTC())
	return &st
}

func (s *Service) lockStake(ctx context.Context, roomID, player string, amount float64) (string, error) {
	ref, err := s.escrow.LockStake(ctx, settlement.LockRequest{RoomID: roomID, Address: player, Amount: amount})
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Str("player", player).Msg("stake lock failed")
		return "", fmt.Errorf("%w: %v", ErrStakeLockFailed, err)
	}
	return ref, nil
}

// releaseStake refunds a stake that was locked for a seat the room refused.
func (s *Service) releaseStake(ctx context.Context, roomID, player, lockRef string, amount float64) {
	key := settlement.RejectKey(roomID, player, lockRef)
	_, err := s.refunds.Refund(ctx, settlement.RefundRequest{
		Key:         key,
		RoomID:      roomID,
		Addresses:   []string{player},
		StakeAmount: amount,
	})
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("player", player).Str("settlement_key", key).Msg("rejected stake not refunded")
		return
	}
	log.Info().Str("room_id", roomID).Str("player", player).Str("settlement_key", key).Msg("rejected stake refunded")
}

func (s *Service) CreateRoom(ctx context.Context, player string, req CreateRoomRequest) (*viewmodel.RoomState, error) {
	player = strings.TrimSpace(player)
	if player == "" || req.Stake <= 0 {
		return nil, coordinator.ErrInvalidRequest
	}
	roomID := store.NewRoomID()
	stakeTx := req.StakeTx
	locked := false
	if stakeTx == "" {
		ref, err := s.lockStake(ctx, roomID, player, req.Stake)
		if err != nil {
			return nil, err
		}
		stakeTx, locked = ref, true
	}
	room, err := s.coord.CreateRoom(ctx, coordinator.CreateParams{
		RoomID:    roomID,
		Creator:   player,
		Stake:     req.Stake,
		TargetMin: req.TargetMin,
		TargetMax: req.TargetMax,
		StakeTx:   stakeTx,
	})
	if err != nil {
		if locked {
			s.releaseStake(ctx, roomID, player, stakeTx, req.Stake)
		}
		return nil, err
	}
	return s.view(room), nil
}

func (s *Service) JoinRoom(ctx context.Context, roomID, player string, req JoinRoomRequest) (*viewmodel.RoomState, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return nil, coordinator.ErrInvalidRequest
	}
	current, err := s.coord.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	// cheap rejections before any stake moves; the coordinator re-checks
	// under the room lock
	if current.Full() || current.Creator.Address == player {
		return nil, coordinator.ErrConflict
	}
	if current.Status != game.StatusWaiting || current.Settlement.Pending() {
		return nil, coordinator.ErrInvalidTransition
	}
	stakeTx := req.StakeTx
	locked := false
	if stakeTx == "" {
		ref, err := s.lockStake(ctx, roomID, player, current.StakeAmount)
		if err != nil {
			return nil, err
		}
		stakeTx, locked = ref, true
	}
	room, err := s.coord.JoinRoom(ctx, roomID, player, stakeTx)
	if err != nil {
		if locked {
			s.releaseStake(ctx, roomID, player, stakeTx, current.StakeAmount)
		}
		return nil, err
	}
	return s.view(room), nil
}

func (s *Service) ConfirmStart(ctx context.Context, roomID, player string) (*viewmodel.RoomState, error) {
	room, err := s.coord.ConfirmStart(ctx, roomID, player)
	return s.view(room), err
}

func (s *Service) Inflate(ctx context.Context, roomID, player string, req InflateRequest) (*viewmodel.RoomState, error) {
	room, err := s.coord.Inflate(ctx, roomID, player, req.Delta)
	return s.view(room), err
}

// Submit returns the committed snapshot. A resolving submit comes back with
// the settlement still pending; the finished room follows on the event stream.
func (s *Service) Submit(ctx context.Context, roomID, player string, req SubmitRequest) (*viewmodel.RoomState, error) {
	room, err := s.coord.Submit(ctx, roomID, player, req.FinalSize)
	return s.view(room), err
}

func (s *Service) CancelRoom(ctx context.Context, roomID, player string) (*viewmodel.RoomState, error) {
	room, err := s.coord.CancelRoom(ctx, roomID, player)
	return s.view(room), err
}

func (s *Service) GetRoom(ctx context.Context, roomID string) (*viewmodel.RoomState, error) {
	room, err := s.coord.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.view(room), nil
}

func (s *Service) ListWaitingRooms(ctx context.Context, limit, offset int) (*RoomsResponse, error) {
	rooms, err := s.coord.ListWaitingRooms(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &RoomsResponse{Items: viewmodel.BuildRoomStates(rooms, s.now().UTC()), Limit: limit, Offset: offset}, nil
}

func (s *Service) RetrySettlement(ctx context.Context, roomID string) (*viewmodel.RoomState, error) {
	room, err := s.coord.RetrySettlement(ctx, roomID)
	return s.view(room), err
}

