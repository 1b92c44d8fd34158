package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

// MeetingRepository relies on the meetings_one_live_per_conversation partial
// unique index: a second live insert fails with 23505 and maps to domain.ErrConflict.
type MeetingRepository struct {
	db txStarter
}

func NewMeetingRepository(db txStarter) *MeetingRepository {
	return &MeetingRepository{db: db}
}

func (r *MeetingRepository) CreateLive(ctx context.Context, m *domain.Meeting) error {
	_, err := r.db.Exec(ctx, queryInsertMeeting, m.ID, m.ConversationID, string(m.CreatedBy), m.StartedAt)
	return mapPgError(err)
}

func (r *MeetingRepository) FindLiveByConversation(ctx context.Context, conversationID string) (*domain.Meeting, error) {
	var id string
	if err := r.db.QueryRow(ctx, queryFindLiveMeeting, conversationID).Scan(&id); err != nil {
		return nil, mapPgError(err)
	}
	return r.GetMeeting(ctx, id)
}

func (r *MeetingRepository) GetMeeting(ctx context.Context, id string) (*domain.Meeting, error) {
	var (
		m       domain.Meeting
		creator string
	)
	err := r.db.QueryRow(ctx, queryGetMeeting, id).Scan(&m.ID, &m.ConversationID, &creator, &m.Live, &m.StartedAt, &m.EndedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	m.CreatedBy = domain.UserID(creator)

	rows, err := r.db.Query(ctx, queryListMeetingParticipants, id)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p    domain.ParticipantRecord
			user string
		)
		if err := rows.Scan(&user, &p.JoinedAt, &p.LeftAt); err != nil {
			return nil, err
		}
		p.UserID = domain.UserID(user)
		m.Participants = append(m.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MeetingRepository) OpenParticipant(ctx context.Context, meetingID string, user domain.UserID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, queryOpenParticipant, meetingID, string(user), at)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *MeetingRepository) CloseParticipant(ctx context.Context, meetingID string, user domain.UserID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, queryCloseParticipant, meetingID, string(user), at)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *MeetingRepository) End(ctx context.Context, meetingID string, at time.Time) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, queryEndMeeting, meetingID, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, queryMeetingExists, meetingID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.ErrNotFound
			}
			return domain.ErrMeetingEnded
		}
		_, err = tx.Exec(ctx, queryCloseAllParticipants, meetingID, at)
		return err
	})
	return mapPgError(err)
}
