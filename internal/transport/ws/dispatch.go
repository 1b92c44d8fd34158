package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
)

func (s *Server) dispatch(ctx context.Context, c *wsConn, in protocol.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("ws handler panic", "type", in.Type, "panic", r, "stack", string(debug.Stack()))
			c.Send(protocol.Envelope{
				Type:    errorTypeFor(in.Type),
				Payload: protocol.Error{Message: "internal error", Code: protocol.CodeInternal},
			})
		}
	}()

	if err := s.handle(ctx, c, in); err != nil {
		e := protocol.ErrorFor(err)
		if e.Code == protocol.CodeInternal {
			c.log.Error("ws event failed", "type", in.Type, "err", err)
		} else {
			c.log.Debug("ws event rejected", "type", in.Type, "err", err)
		}
		c.Send(protocol.Envelope{Type: errorTypeFor(in.Type), Payload: e})
	}
}

func (s *Server) handle(ctx context.Context, c *wsConn, in protocol.Inbound) error {
	switch in.Type {
	case protocol.TypeJoinRoom:
		p, err := decode[protocol.RoomRef](in)
		if err != nil {
			return err
		}
		return s.chat.JoinRoom(ctx, c, p.Target())

	case protocol.TypeLeaveRoom:
		p, err := decode[protocol.RoomRef](in)
		if err != nil {
			return err
		}
		s.chat.LeaveRoom(ctx, c, p.Target())

	case protocol.TypeSendMessage:
		p, err := decode[protocol.SendMessage](in)
		if err != nil {
			return err
		}
		_, err = s.chat.SendMessage(ctx, c, p)
		return err

	case protocol.TypeTypingStart, protocol.TypeTypingStop:
		p, err := decode[protocol.ConversationRef](in)
		if err != nil {
			return nil // typing is best effort
		}
		if in.Type == protocol.TypeTypingStart {
			s.chat.StartTyping(ctx, c, p.ConversationID)
		} else {
			s.chat.StopTyping(ctx, c, p.ConversationID)
		}

	case protocol.TypeMessageRead:
		p, err := decode[protocol.MessageRead](in)
		if err != nil {
			return err
		}
		return s.chat.MarkRead(ctx, c, p)

	case protocol.TypeJoinMeeting:
		p, err := decode[protocol.MeetingRef](in)
		if err != nil {
			return err
		}
		return s.meetings.JoinMeeting(ctx, c, p.MeetingID)

	case protocol.TypeLeaveMeeting:
		p, err := decode[protocol.MeetingRef](in)
		if err != nil {
			return err
		}
		s.meetings.LeaveMeeting(ctx, c, p.MeetingID)

	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeIceCandidate:
		p, err := decode[protocol.Signal](in)
		if err != nil {
			return err
		}
		return s.meetings.Relay(ctx, in.Type, c, p)

	case protocol.TypeMediaStateChange:
		p, err := decode[protocol.MediaState](in)
		if err != nil {
			return err
		}
		s.meetings.MediaState(ctx, c, p)

	case protocol.TypeScreenShareChange:
		p, err := decode[protocol.ScreenShare](in)
		if err != nil {
			return err
		}
		s.meetings.ScreenShare(ctx, c, p)

	default:
		return fmt.Errorf("%w: unknown event %q", domain.ErrInvalidInput, in.Type)
	}
	return nil
}

func decode[T any](in protocol.Inbound) (T, error) {
	var out T
	if len(in.Payload) == 0 {
		return out, fmt.Errorf("%w: %s: missing payload", domain.ErrInvalidInput, in.Type)
	}
	if err := json.Unmarshal(in.Payload, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, in.Type, err)
	}
	return out, nil
}

// errorTypeFor: meeting and signaling events answer with meetingError, the rest with roomError.
func errorTypeFor(eventType string) string {
	switch eventType {
	case protocol.TypeJoinMeeting, protocol.TypeLeaveMeeting,
		protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeIceCandidate,
		protocol.TypeMediaStateChange, protocol.TypeScreenShareChange:
		return protocol.TypeMeetingError
	default:
		return protocol.TypeRoomError
	}
}
