package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lox/chiptable/internal/game"
)

func (s *Server) createTable(ctx context.Context, req CreateTableData) (ResultData, error) {
	table, playerID, err := s.gameService.CreateTable(ctx, req.TableID, req.Name, req.SmallBlind, req.BigBlind, req.BuyIn)
	return ResultData{Table: table, PlayerID: playerID}, err
}

func (s *Server) getTable(ctx context.Context, req TableRefData) (ResultData, error) {
	table, err := s.gameService.GetTable(ctx, req.TableID)
	return ResultData{Table: table}, err
}

func (s *Server) joinTable(ctx context.Context, req JoinTableData) (ResultData, error) {
	table, playerID, err := s.gameService.JoinTable(ctx, req.TableID, req.Name, req.BuyIn)
	return ResultData{Table: table, PlayerID: playerID}, err
}

func (s *Server) leaveTable(ctx context.Context, req LeaveTableData) (ResultData, error) {
	table, err := s.gameService.LeaveTable(ctx, req.TableID, req.PlayerID)
	return ResultData{Table: table}, err
}

func (s *Server) startRound(ctx context.Context, req TableRefData) (ResultData, error) {
	table, err := s.gameService.StartRound(ctx, req.TableID)
	return ResultData{Table: table}, err
}

func (s *Server) moveDealer(ctx context.Context, req TableRefData) (ResultData, error) {
	table, err := s.gameService.MoveDealer(ctx, req.TableID)
	return ResultData{Table: table}, err
}

func (s *Server) playerAction(ctx context.Context, req PlayerActionData) (ResultData, error) {
	action, err := game.ParseAction(req.Action)
	if err != nil {
		return ResultData{}, err
	}
	table, result, err := s.gameService.PlayerAction(ctx, req.TableID, req.PlayerID, action, req.RaiseAmount)
	if err != nil {
		return ResultData{}, err
	}
	return ResultData{Table: table, Action: &result}, nil
}

func (s *Server) endRound(ctx context.Context, req EndRoundData) (ResultData, error) {
	table, err := s.gameService.EndRound(ctx, req.TableID, req.WinnerID)
	return ResultData{Table: table}, err
}

func (s *Server) updateChips(ctx context.Context, req UpdateChipsData) (ResultData, error) {
	if req.Chips == nil {
		return ResultData{}, game.ValidationError("chips is required")
	}
	table, err := s.gameService.UpdatePlayerChips(ctx, req.TableID, req.PlayerID, *req.Chips)
	return ResultData{Table: table}, err
}

func (s *Server) updateBlinds(ctx context.Context, req UpdateBlindsData) (ResultData, error) {
	table, err := s.gameService.UpdateBlinds(ctx, req.TableID, req.SmallBlind, req.BigBlind)
	return ResultData{Table: table}, err
}

func (s *Server) updatePositions(ctx context.Context, req UpdatePositionsData) (ResultData, error) {
	table, err := s.gameService.UpdatePlayerPositions(ctx, req.TableID, req.PlayerIDs)
	return ResultData{Table: table}, err
}

func (s *Server) setActive(ctx context.Context, req SetActiveData) (ResultData, error) {
	if req.Active == nil {
		return ResultData{}, game.ValidationError("active is required")
	}
	table, err := s.gameService.SetPlayerActive(ctx, req.TableID, req.PlayerID, *req.Active)
	return ResultData{Table: table}, err
}

// messageHandler decodes a WebSocket payload and runs an operation
type messageHandler func(ctx context.Context, data json.RawMessage) (ResultData, error)

func decodeAndRun[T any](op func(context.Context, T) (ResultData, error)) messageHandler {
	return func(ctx context.Context, data json.RawMessage) (ResultData, error) {
		var req T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				return ResultData{}, game.ValidationError("malformed message data: " + err.Error())
			}
		}
		return op(ctx, req)
	}
}

func (s *Server) messageHandlers() map[MessageType]messageHandler {
	return map[MessageType]messageHandler{
		MessageTypeCreateTable:     decodeAndRun(s.createTable),
		MessageTypeJoinTable:       decodeAndRun(s.joinTable),
		MessageTypeLeaveTable:      decodeAndRun(s.leaveTable),
		MessageTypeStartRound:      decodeAndRun(s.startRound),
		MessageTypeMoveDealer:      decodeAndRun(s.moveDealer),
		MessageTypePlayerAction:    decodeAndRun(s.playerAction),
		MessageTypeEndRound:        decodeAndRun(s.endRound),
		MessageTypeUpdateChips:     decodeAndRun(s.updateChips),
		MessageTypeUpdateBlinds:    decodeAndRun(s.updateBlinds),
		MessageTypeUpdatePositions: decodeAndRun(s.updatePositions),
		MessageTypeSetActive:       decodeAndRun(s.setActive),
	}
}

// classifyError maps an operation error to an HTTP status and error code
func classifyError(err error) (int, ErrorData) {
	var (
		verr game.ValidationError
		perr game.PreconditionError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorData{Code: "invalid_request", Message: err.Error()}
	case errors.Is(err, game.ErrTableNotFound), errors.Is(err, game.ErrPlayerNotFound):
		return http.StatusNotFound, ErrorData{Code: "not_found", Message: err.Error()}
	case errors.As(err, &perr):
		return http.StatusConflict, ErrorData{Code: "precondition_failed", Message: err.Error()}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, ErrorData{Code: "conflict", Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrorData{Code: "unavailable", Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorData{Code: "internal_error", Message: "internal error"}
	}
}
