package domain

// EventOnlineUsers is the message type carrying the full online user set.
const EventOnlineUsers = "getOnlineUser"

// PresenceMessage is pushed to every connected session whenever the set of
// online users changes. Payload is always the complete set, never a diff.
type PresenceMessage struct {
	Type    string   `json:"type"`
	Payload []UserID `json:"payload"`
}

func NewOnlineUsersMessage(online []UserID) PresenceMessage {
	if online == nil {
		online = []UserID{}
	}
	return PresenceMessage{Type: EventOnlineUsers, Payload: online}
}
