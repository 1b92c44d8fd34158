package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/logger"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/registry"
)

const meetingIDAttempts = 3

// MeetingService runs the live side of meetings: membership of meeting rooms,
// participant records and signaling relay. The joining connection always
// initiates negotiation towards the members it is told about in meetingJoined.
type MeetingService struct {
	hub      *registry.Hub
	meetings *registry.Meetings
	store    MeetingStore
	convs    ConversationStore
	records  *recordLocks

	now func() time.Time
}

func NewMeetingService(hub *registry.Hub, meetings *registry.Meetings, store MeetingStore, convs ConversationStore) *MeetingService {
	return &MeetingService{
		hub:      hub,
		meetings: meetings,
		store:    store,
		convs:    convs,
		records:  newRecordLocks(),
		now:      time.Now,
	}
}

// StartMeeting returns the conversation's live meeting, creating it when there
// is none. created is false when an existing meeting was returned, including
// the case where a concurrent start won the race.
func (s *MeetingService) StartMeeting(ctx context.Context, user domain.Identity, conversationID string) (m *domain.Meeting, created bool, err error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, false, fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}

	conv, err := s.convs.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, false, err
	}
	if !conv.CanManageMeetings(user.ID) {
		return nil, false, fmt.Errorf("%w: only the group admin can start a meeting", domain.ErrForbidden)
	}

	live, err := s.store.FindLiveByConversation(ctx, conv.ID)
	switch {
	case err == nil:
		return live, false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, false, err
	}

	for attempt := 1; ; attempt++ {
		m = &domain.Meeting{
			ID:             domain.NewMeetingID(),
			ConversationID: conv.ID,
			CreatedBy:      user.ID,
			Live:           true,
			StartedAt:      s.now(),
		}
		err := s.store.CreateLive(ctx, m)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, false, err
		}
		// проиграли гонку: отдаём уже живую встречу
		winner, ferr := s.store.FindLiveByConversation(ctx, conv.ID)
		if ferr == nil {
			return winner, false, nil
		}
		if !errors.Is(ferr, domain.ErrNotFound) {
			return nil, false, ferr
		}
		// живой встречи нет: конфликт по коду встречи, пробуем другой
		if attempt == meetingIDAttempts {
			return nil, false, fmt.Errorf("create meeting: %w", err)
		}
	}

	s.hub.Broadcast(registry.ConversationRoom(conv.ID), protocol.Envelope{
		Type: protocol.TypeMeetingStarted,
		Payload: protocol.MeetingStarted{
			MeetingID:      m.ID,
			ConversationID: conv.ID,
			CreatedBy:      user.ID,
		},
	})
	logger.FromContext(ctx).Info("meeting started", "meeting", m.ID, "conversation", conv.ID, "user", user.ID)

	return m, true, nil
}

// EndMeeting is allowed for the meeting's creator and the group admin.
func (s *MeetingService) EndMeeting(ctx context.Context, user domain.Identity, meetingID string) error {
	m, err := s.store.GetMeeting(ctx, strings.TrimSpace(meetingID))
	if err != nil {
		return err
	}
	if !m.Live {
		return domain.ErrMeetingEnded
	}

	conv, err := s.convs.GetConversation(ctx, m.ConversationID)
	if err != nil {
		return err
	}
	isAdmin := conv.IsGroup && conv.AdminID == user.ID
	if m.CreatedBy != user.ID && !isAdmin {
		return fmt.Errorf("%w: only the creator or the group admin can end a meeting", domain.ErrForbidden)
	}

	if err := s.store.End(ctx, m.ID, s.now()); err != nil {
		return fmt.Errorf("end meeting: %w", err)
	}

	members := s.meetings.End(m.ID)
	ev := protocol.Envelope{
		Type:    protocol.TypeMeetingEnded,
		Payload: protocol.MeetingEnded{MeetingID: m.ID, EndedBy: user.ID},
	}
	room := registry.MeetingRoom(m.ID)
	for _, mm := range members {
		s.hub.Leave(room, mm.ConnID)
		s.hub.SendTo(mm.ConnID, ev)
	}

	logger.FromContext(ctx).Info("meeting ended", "meeting", m.ID, "user", user.ID, "members", len(members))
	return nil
}

func (s *MeetingService) JoinMeeting(ctx context.Context, c registry.Conn, meetingID string) error {
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return fmt.Errorf("%w: meeting id is required", domain.ErrInvalidInput)
	}
	if s.meetings.IsEnded(meetingID) {
		return domain.ErrMeetingEnded
	}

	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if !m.Live {
		return domain.ErrMeetingEnded
	}

	id := c.Identity()
	conv, err := s.convs.GetConversation(ctx, m.ConversationID)
	if err != nil {
		return err
	}
	if !conv.IsParticipant(id.ID) {
		return fmt.Errorf("%w: not a participant of this meeting's conversation", domain.ErrForbidden)
	}

	// Сначала регистрируем соединение: параллельный уход другой вкладки того же
	// пользователя должен видеть, что identity ещё во встрече.
	room := registry.MeetingRoom(m.ID)
	if err := s.hub.Join(ctx, room, c.ID(), nil); err != nil {
		return err
	}
	others, added, err := s.meetings.Join(m.ID, registry.MeetingMember{
		ConnID:   c.ID(),
		Identity: id,
		JoinedAt: s.now(),
		Media:    registry.MediaState{Audio: true, Video: true},
	})
	if err != nil {
		// встречу завершили между проверкой и входом
		s.hub.Leave(room, c.ID())
		return err
	}

	if err := s.openRecord(ctx, m.ID, id.ID); err != nil {
		if added {
			d, ok := s.meetings.Leave(m.ID, c.ID())
			s.hub.Leave(room, c.ID())
			if ok && !d.IdentityRemains {
				s.closeRecord(ctx, m.ID, id.ID)
			}
		}
		return fmt.Errorf("open participant record: %w", err)
	}

	members := make([]protocol.Member, 0, len(others))
	for _, o := range others {
		members = append(members, toMember(o))
	}
	c.Send(protocol.Envelope{
		Type:    protocol.TypeMeetingJoined,
		Payload: protocol.MeetingJoined{MeetingID: m.ID, Members: members},
	})

	if added {
		s.hub.Broadcast(registry.MeetingRoom(m.ID), protocol.Envelope{
			Type: protocol.TypeParticipantJoined,
			Payload: protocol.ParticipantJoined{
				MeetingID:    m.ID,
				Identity:     id.ID,
				DisplayName:  id.DisplayName,
				ConnectionID: string(c.ID()),
			},
		}, c.ID())
	}

	logger.FromContext(ctx).Debug("meeting joined", "meeting", m.ID, "conn", c.ID(), "user", id.ID, "others", len(others))
	return nil
}

// LeaveMeeting is a no-op for connections that are not in the meeting.
func (s *MeetingService) LeaveMeeting(ctx context.Context, c registry.Conn, meetingID string) {
	meetingID = strings.TrimSpace(meetingID)
	d, ok := s.meetings.Leave(meetingID, c.ID())
	if !ok {
		s.hub.Leave(registry.MeetingRoom(meetingID), c.ID())
		return
	}
	s.depart(ctx, d)
}

func (s *MeetingService) leaveAll(ctx context.Context, id registry.ConnID) {
	for _, d := range s.meetings.LeaveAll(id) {
		s.depart(ctx, d)
	}
}

// depart finishes a leave that is already applied to the registry. Closing the
// participant record is best effort: the in-memory state is not rolled back.
func (s *MeetingService) depart(ctx context.Context, d registry.Departure) {
	s.hub.Leave(registry.MeetingRoom(d.MeetingID), d.Member.ConnID)

	ev := protocol.Envelope{
		Type: protocol.TypeParticipantLeft,
		Payload: protocol.ParticipantLeft{
			MeetingID:    d.MeetingID,
			Identity:     d.Member.Identity.ID,
			ConnectionID: string(d.Member.ConnID),
		},
	}
	for _, m := range d.Remaining {
		s.hub.SendTo(m.ConnID, ev)
	}

	if d.IdentityRemains {
		return
	}
	s.closeRecord(ctx, d.MeetingID, d.Member.Identity.ID)
}

func (s *MeetingService) openRecord(ctx context.Context, meetingID string, user domain.UserID) error {
	unlock := s.records.lock(meetingID, user)
	defer unlock()

	_, err := s.store.OpenParticipant(ctx, meetingID, user, s.now())
	return err
}

// closeRecord closes the identity's open record unless one of its connections
// is in the meeting again. The check runs under the record lock, so a join
// registered before it keeps the record open and one registered after it
// reopens a fresh record.
func (s *MeetingService) closeRecord(ctx context.Context, meetingID string, user domain.UserID) {
	unlock := s.records.lock(meetingID, user)
	defer unlock()

	if s.meetings.HasIdentity(meetingID, user) {
		return
	}
	if _, err := s.store.CloseParticipant(ctx, meetingID, user, s.now()); err != nil {
		logger.FromContext(ctx).Warn("close participant record failed",
			"meeting", meetingID, "user", user, "err", err)
	}
}

// Relay forwards an offer, answer or ICE candidate to one member of the same
// meeting. Anything that cannot be delivered is dropped without an error.
func (s *MeetingService) Relay(ctx context.Context, kind string, c registry.Conn, sig protocol.Signal) error {
	if !protocol.IsSignal(kind) {
		return fmt.Errorf("%w: unknown signal %q", domain.ErrInvalidInput, kind)
	}
	if sig.MeetingID == "" || sig.TargetConnectionID == "" {
		return fmt.Errorf("%w: meetingId and targetConnectionId are required", domain.ErrInvalidInput)
	}

	log := logger.FromContext(ctx)
	target := registry.ConnID(sig.TargetConnectionID)

	if s.meetings.IsEnded(sig.MeetingID) {
		log.Debug("relay dropped: meeting ended", "meeting", sig.MeetingID, "kind", kind)
		return nil
	}
	sender, ok := s.meetings.Member(sig.MeetingID, c.ID())
	if !ok {
		log.Debug("relay dropped: sender not in meeting", "meeting", sig.MeetingID, "kind", kind, "conn", c.ID())
		return nil
	}
	if _, ok := s.meetings.Member(sig.MeetingID, target); !ok {
		log.Debug("relay dropped: target gone", "meeting", sig.MeetingID, "kind", kind, "target", target)
		return nil
	}

	logSignal(ctx, kind, sig)

	s.hub.SendTo(target, protocol.Envelope{
		Type: kind,
		Payload: protocol.Relayed{
			MeetingID:          sig.MeetingID,
			Payload:            sig.Payload,
			SenderConnectionID: string(c.ID()),
			SenderIdentity:     sender.Identity.ID,
			SenderDisplayName:  sender.Identity.DisplayName,
		},
	})
	return nil
}

func (s *MeetingService) MediaState(_ context.Context, c registry.Conn, in protocol.MediaState) {
	st, ok := s.meetings.SetMedia(in.MeetingID, c.ID(), func(m *registry.MediaState) {
		m.Audio = in.AudioEnabled
		m.Video = in.VideoEnabled
	})
	if !ok {
		return
	}
	s.hub.Broadcast(registry.MeetingRoom(in.MeetingID), protocol.Envelope{
		Type: protocol.TypeParticipantMediaState,
		Payload: protocol.ParticipantMediaState{
			MeetingID:    in.MeetingID,
			ConnectionID: string(c.ID()),
			AudioEnabled: st.Audio,
			VideoEnabled: st.Video,
		},
	}, c.ID())
}

func (s *MeetingService) ScreenShare(_ context.Context, c registry.Conn, in protocol.ScreenShare) {
	st, ok := s.meetings.SetMedia(in.MeetingID, c.ID(), func(m *registry.MediaState) {
		m.Screen = in.IsSharing
	})
	if !ok {
		return
	}
	s.hub.Broadcast(registry.MeetingRoom(in.MeetingID), protocol.Envelope{
		Type: protocol.TypeParticipantScreenShare,
		Payload: protocol.ParticipantScreenShare{
			MeetingID:    in.MeetingID,
			ConnectionID: string(c.ID()),
			IsSharing:    st.Screen,
		},
	}, c.ID())
}

// Participants lists the connections currently in the meeting. The caller
// must belong to the meeting's conversation.
func (s *MeetingService) Participants(ctx context.Context, user domain.Identity, meetingID string) ([]protocol.Member, error) {
	m, err := s.store.GetMeeting(ctx, strings.TrimSpace(meetingID))
	if err != nil {
		return nil, err
	}
	conv, err := s.convs.GetConversation(ctx, m.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(user.ID) {
		return nil, domain.ErrForbidden
	}

	live := s.meetings.Members(m.ID)
	out := make([]protocol.Member, 0, len(live))
	for _, mm := range live {
		out = append(out, toMember(mm))
	}
	return out, nil
}

func toMember(m registry.MeetingMember) protocol.Member {
	return protocol.Member{
		ConnectionID: string(m.ConnID),
		Identity:     m.Identity.ID,
		DisplayName:  m.Identity.DisplayName,
		AudioEnabled: m.Media.Audio,
		VideoEnabled: m.Media.Video,
		IsSharing:    m.Media.Screen,
	}
}
