package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/session"
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent

	errInvalidRequest = errors.New("server: invalid request")
)

// Wire codes that have no engine sentinel
const (
	codeInvalidRequest = "invalid_request"
	codeInvalidMessage = "invalid_message"
	codeUnknownMessage = "unknown_message_type"
	codePayoutPending  = "payout_pending"
)

// errorCode maps err to its stable wire code
func errorCode(err error) string {
	switch {
	case errors.Is(err, errInvalidRequest):
		return codeInvalidRequest
	case errors.Is(err, session.ErrPayoutPending):
		return codePayoutPending
	}
	return game.Code(err)
}

// statusFor maps err to an HTTP status
func statusFor(err error) int {
	switch errorCode(err) {
	case codeInvalidRequest, game.CodeInvalidBet:
		return http.StatusBadRequest
	case game.CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case game.CodeRoundNotFound:
		return http.StatusNotFound
	case game.CodeIllegalAction, game.CodeRoundAlreadySettled, game.CodeRoundInProgress:
		return http.StatusConflict
	case codePayoutPending:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorData builds the error body. snap is attached when it describes a
// round.
func errorData(err error, snap game.Snapshot) ErrorData {
	data := ErrorData{Code: errorCode(err), Message: err.Error()}
	if snap.ID != "" {
		data.Snapshot = &snap
	}
	return data
}
