// Package protocol describes the JSON frames exchanged over the websocket.
package protocol

import "encoding/json"

// Входящие события (client -> server)
const (
	TypeJoinRoom          = "joinRoom"
	TypeLeaveRoom         = "leaveRoom"
	TypeSendMessage       = "sendMessage"
	TypeTypingStart       = "typingStart"
	TypeTypingStop        = "typingStop"
	TypeMessageRead       = "messageRead"
	TypeJoinMeeting       = "joinMeeting"
	TypeLeaveMeeting      = "leaveMeeting"
	TypeOffer             = "offer"
	TypeAnswer            = "answer"
	TypeIceCandidate      = "iceCandidate"
	TypeMediaStateChange  = "mediaStateChange"
	TypeScreenShareChange = "screenShareStateChange"
)

// Исходящие события (server -> client)
const (
	TypePresenceOnline         = "presenceOnline"
	TypePresenceOffline        = "presenceOffline"
	TypeRoomError              = "roomError"
	TypeMessageReceived        = "messageReceived"
	TypeMessageNotification    = "messageNotification"
	TypeTypingStarted          = "typingStarted"
	TypeTypingStopped          = "typingStopped"
	TypeReadReceipt            = "readReceipt"
	TypeMeetingStarted         = "meetingStarted"
	TypeMeetingJoined          = "meetingJoined"
	TypeParticipantJoined      = "participantJoined"
	TypeParticipantLeft        = "participantLeft"
	TypeMeetingEnded           = "meetingEnded"
	TypeMeetingError           = "meetingError"
	TypeParticipantMediaState  = "participantMediaState"
	TypeParticipantScreenShare = "participantScreenShare"
)

// Inbound is a raw client frame; Payload is decoded by the dispatcher per Type.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Envelope is a server frame.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func IsSignal(t string) bool {
	return t == TypeOffer || t == TypeAnswer || t == TypeIceCandidate
}
