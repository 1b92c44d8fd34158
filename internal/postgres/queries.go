package postgres

const (
	queryGetUser = `
		SELECT id, display_name
		FROM users
		WHERE id = $1`

	queryGetConversation = `
		SELECT c.id, c.is_group, COALESCE(c.group_name, ''), COALESCE(c.admin_id, ''),
		       ARRAY(SELECT p.user_id FROM conversation_participants p
		             WHERE p.conversation_id = c.id ORDER BY p.user_id)
		FROM conversations c
		WHERE c.id = $1`

	queryInsertMessage = `
		INSERT INTO messages (conversation_id, sender_id, content, kind, attachment_url, attachment_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	queryInsertRead = `
		INSERT INTO message_reads (message_id, user_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`

	queryTouchConversation = `
		UPDATE conversations
		SET last_message_id = $2, updated_at = $3
		WHERE id = $1`

	queryGetMessage = `
		SELECT m.id, m.conversation_id, m.sender_id, COALESCE(u.display_name, ''),
		       m.content, m.kind, m.attachment_url, m.attachment_name, m.created_at
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.id = $1`

	queryListReads = `
		SELECT user_id, read_at
		FROM message_reads
		WHERE message_id = $1
		ORDER BY read_at, user_id`

	queryInsertMeeting = `
		INSERT INTO meetings (id, conversation_id, created_by, is_live, started_at)
		VALUES ($1, $2, $3, TRUE, $4)`

	queryFindLiveMeeting = `
		SELECT id
		FROM meetings
		WHERE conversation_id = $1 AND is_live
		LIMIT 1`

	queryGetMeeting = `
		SELECT id, conversation_id, created_by, is_live, started_at, ended_at
		FROM meetings
		WHERE id = $1`

	queryListMeetingParticipants = `
		SELECT user_id, joined_at, left_at
		FROM meeting_participants
		WHERE meeting_id = $1
		ORDER BY id`

	// частичный уникальный индекс: одна открытая запись на пользователя
	queryOpenParticipant = `
		INSERT INTO meeting_participants (meeting_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (meeting_id, user_id) WHERE left_at IS NULL DO NOTHING`

	queryCloseParticipant = `
		UPDATE meeting_participants
		SET left_at = $3
		WHERE meeting_id = $1 AND user_id = $2 AND left_at IS NULL`

	queryEndMeeting = `
		UPDATE meetings
		SET is_live = FALSE, ended_at = $2
		WHERE id = $1 AND is_live`

	queryCloseAllParticipants = `
		UPDATE meeting_participants
		SET left_at = $2
		WHERE meeting_id = $1 AND left_at IS NULL`

	queryMeetingExists = `SELECT EXISTS(SELECT 1 FROM meetings WHERE id = $1)`
)
