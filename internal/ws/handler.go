package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
	"github.com/DoyleJ11/mafia-backend/internal/hub"
	"github.com/DoyleJ11/mafia-backend/internal/notify"
	"github.com/DoyleJ11/mafia-backend/internal/room"
	"github.com/DoyleJ11/mafia-backend/internal/store"
	"github.com/DoyleJ11/mafia-backend/internal/types"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	readTimeout  = 5 * time.Minute
	writeTimeout = 3 * time.Second
)

func Handler(h *hub.Hub, m *Manager, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		playerID := r.URL.Query().Get("user")
		if roomID == "" || playerID == "" {
			http.Error(w, "missing room or user", http.StatusBadRequest)
			return
		}

		if !room.ValidID(roomID) {
			http.Error(w, room.ErrInvalidRoomID.Error(), http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out, leave := m.Join(roomID, playerID)
		defer leave()
		log := logger.With(zap.String("room_id", roomID), zap.String("player_id", playerID))
		log.Debug("connected")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for payload := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				err := conn.Write(ctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					return
				}
			}
			// Outbox closed by the manager: replaced or too slow.
			if writeCtx.Err() == nil {
				conn.Close(websocket.StatusPolicyViolation, "connection dropped")
			}
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				reply(r.Context(), conn, types.ServerMessage{Type: types.MsgError, Message: "bad json"})
				continue
			}

			reply(r.Context(), conn, dispatch(r.Context(), h, m, roomID, playerID, cm))
		}
	}
}

// dispatch forwards one client message to the room and builds the reply for
// the sender. The room is resolved per message since idle actors are evicted.
func dispatch(ctx context.Context, h *hub.Hub, m *Manager, roomID, playerID string, cm types.ClientMessage) types.ServerMessage {
	rm, err := h.Active(ctx, roomID)
	if err != nil {
		return errorReply(describe(err))
	}
	var ack engine.Ack

	switch cm.Type {
	case types.MsgVoteFirst:
		ack, err = rm.SubmitFirstVote(ctx, playerID, cm.TargetID)

	case types.MsgVoteSecond:
		if cm.Execute == nil {
			return errorReply("execute is required")
		}
		ack, err = rm.SubmitExecutionVote(ctx, playerID, *cm.Execute)

	case types.MsgMafiaTarget, types.MsgPoliceTarget, types.MsgDoctorTarget:
		ack, err = rm.SubmitNightAction(ctx, actionRole(cm.Type), playerID, cm.TargetID)

	case types.MsgAction:
		role, ok := engine.ParseRole(cm.Role)
		if !ok {
			return errorReply("unknown role")
		}
		ack, err = rm.SubmitNightAction(ctx, role, playerID, cm.TargetID)

	case types.MsgPoliceResult:
		ack, err = rm.RequestPoliceResult(ctx, playerID)

	case types.MsgChat:
		ch, ok := engine.ParseChannel(cm.Channel)
		if !ok {
			return errorReply("unknown channel")
		}
		var to []string
		to, ack, err = rm.Chat(ctx, playerID, ch)
		if err == nil && ack.Accepted {
			err = m.Deliver(ctx, roomID, to, notify.ChatEvent(ch), notify.ChatPayload{
				SenderID: playerID,
				Channel:  ch,
				Message:  cm.Message,
				SentAt:   time.Now().UTC(),
			})
		}

	default:
		return errorReply("unknown type")
	}

	switch {
	case err != nil:
		return errorReply(describe(err))
	case !ack.Accepted:
		return types.ServerMessage{Type: types.MsgRefused, Request: cm.Type, Reason: string(ack.Refusal)}
	default:
		return types.ServerMessage{Type: types.MsgAck, Request: cm.Type}
	}
}

func actionRole(msgType string) engine.Role {
	switch msgType {
	case types.MsgMafiaTarget:
		return engine.RoleMafia
	case types.MsgPoliceTarget:
		return engine.RolePolice
	default:
		return engine.RoleDoctor
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "no game in progress"
	case errors.Is(err, engine.ErrValidation):
		return err.Error()
	case errors.Is(err, room.ErrRoomClosed):
		return "room closed, try again"
	default:
		return "internal error"
	}
}

func errorReply(msg string) types.ServerMessage {
	return types.ServerMessage{Type: types.MsgError, Message: msg}
}

func reply(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
