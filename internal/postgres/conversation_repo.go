package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type ConversationRepository struct {
	db txStarter
}

func NewConversationRepository(db txStarter) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var (
		c     domain.Conversation
		admin string
		parts []string
	)
	err := r.db.QueryRow(ctx, queryGetConversation, id).Scan(&c.ID, &c.IsGroup, &c.GroupName, &admin, &parts)
	if err != nil {
		return nil, mapPgError(err)
	}
	c.AdminID = domain.UserID(admin)
	c.Participants = make([]domain.UserID, 0, len(parts))
	for _, p := range parts {
		c.Participants = append(c.Participants, domain.UserID(p))
	}
	return &c, nil
}

// SaveMessage inserts the message, the sender's own read mark and the
// conversation's last-message pointer in one transaction.
func (r *ConversationRepository) SaveMessage(ctx context.Context, m domain.NewMessage) (*domain.Message, error) {
	var (
		attURL, attName *string
		msgID           string
	)
	if m.Attachment != nil {
		attURL, attName = &m.Attachment.URL, &m.Attachment.Name
	}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, queryInsertMessage,
			m.ConversationID,
			string(m.Sender.ID),
			m.Content,
			string(m.Kind),
			attURL,
			attName,
			m.SentAt,
		).Scan(&msgID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, queryInsertRead, msgID, string(m.Sender.ID), m.SentAt); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, queryTouchConversation, m.ConversationID, msgID, m.SentAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	msg := &domain.Message{
		ID:             msgID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender.ID,
		SenderName:     m.Sender.DisplayName,
		Content:        m.Content,
		Kind:           m.Kind,
		ReadBy:         []domain.Receipt{{UserID: m.Sender.ID, ReadAt: m.SentAt}},
		CreatedAt:      m.SentAt,
	}
	if m.Attachment != nil {
		a := *m.Attachment
		msg.Attachment = &a
	}
	return msg, nil
}

func (r *ConversationRepository) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	var (
		m               domain.Message
		sender, kind    string
		attURL, attName *string
	)
	err := r.db.QueryRow(ctx, queryGetMessage, id).Scan(
		&m.ID,
		&m.ConversationID,
		&sender,
		&m.SenderName,
		&m.Content,
		&kind,
		&attURL,
		&attName,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	m.Sender = domain.UserID(sender)
	m.Kind = domain.MessageKind(kind)
	if attURL != nil {
		m.Attachment = &domain.Attachment{URL: *attURL}
		if attName != nil {
			m.Attachment.Name = *attName
		}
	}

	rows, err := r.db.Query(ctx, queryListReads, id)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			user string
			at   time.Time
		)
		if err := rows.Scan(&user, &at); err != nil {
			return nil, err
		}
		m.ReadBy = append(m.ReadBy, domain.Receipt{UserID: domain.UserID(user), ReadAt: at})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ConversationRepository) MarkRead(ctx context.Context, messageID string, user domain.UserID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, queryInsertRead, messageID, string(user), at)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() == 1, nil
}
