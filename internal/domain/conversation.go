package domain

import "slices"

type Conversation struct {
	ID           string
	Participants []UserID
	IsGroup      bool
	GroupName    string
	AdminID      UserID
}

func (c *Conversation) IsParticipant(id UserID) bool {
	return slices.Contains(c.Participants, id)
}

// CanManageMeetings: in groups only the admin, in one-to-one chats both sides.
func (c *Conversation) CanManageMeetings(id UserID) bool {
	if c.IsGroup {
		return c.AdminID == id
	}
	return c.IsParticipant(id)
}

// Summary is what participants see in out-of-room notifications.
type ConversationSummary struct {
	IsGroup   bool   `json:"isGroupChat"`
	GroupName string `json:"groupName,omitempty"`
}

func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{IsGroup: c.IsGroup, GroupName: c.GroupName}
}
