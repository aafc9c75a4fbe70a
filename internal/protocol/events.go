package protocol

import "encoding/json"

// Reserved event names. Names prefixed pusher: are protocol control
// events; pusher_internal: names are server-originated notifications
// clients never send.
const (
	EventPing                  = "pusher:ping"
	EventPong                  = "pusher:pong"
	EventError                 = "pusher:error"
	EventSubscribe             = "pusher:subscribe"
	EventUnsubscribe           = "pusher:unsubscribe"
	EventConnectionEstablished = "pusher:connection_established"

	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
	EventMemberAdded           = "pusher_internal:member_added"
	EventMemberRemoved         = "pusher_internal:member_removed"
)

// ErrorCode is a supplemental numeric code attached to pusher:error
// frames alongside the required human-readable message. Real Pusher
// clients key their retry/backoff behavior off these ranges; the
// protocol's error taxonomy otherwise only pins down message text.
type ErrorCode int

const (
	ErrCodeInvalidJSON        ErrorCode = 4001
	ErrCodeAuthFailed         ErrorCode = 4009
	ErrCodeRateLimited        ErrorCode = 4100
	ErrCodeInvalidChannel     ErrorCode = 4200
	ErrCodeInvalidChannelData ErrorCode = 4201
	ErrCodeChannelQuota       ErrorCode = 4301
	ErrCodeNotSubscribed      ErrorCode = 4302
	ErrCodeClientEventDenied  ErrorCode = 4303
)

// errorPayload is the data field of a pusher:error envelope.
type errorPayload struct {
	Message string    `json:"message"`
	Code    ErrorCode `json:"code,omitempty"`
}

// NewError builds a pusher:error envelope carrying message and code.
func NewError(code ErrorCode, message string) Envelope {
	data, _ := json.Marshal(errorPayload{Message: message, Code: code})
	return Envelope{Event: EventError, Data: data}
}

// connectionEstablishedPayload is the data field of
// pusher:connection_established.
type connectionEstablishedPayload struct {
	SocketID       string `json:"socket_id"`
	ActivityTimeout int   `json:"activity_timeout"`
}

// NewConnectionEstablished builds the greeting frame a connection
// receives immediately after admission, telling the client its own
// socket id (which it needs to ever request an auth token) and the
// activity timeout it should use to decide when to send pusher:ping.
func NewConnectionEstablished(socketID string, activityTimeoutSeconds int) Envelope {
	data, _ := json.Marshal(connectionEstablishedPayload{
		SocketID:        socketID,
		ActivityTimeout: activityTimeoutSeconds,
	})
	return Envelope{Event: EventConnectionEstablished, Data: data}
}

// NewPong builds the reply to a client's pusher:ping.
func NewPong() Envelope {
	return Envelope{Event: EventPong}
}

// subscriptionSucceededPayload is the data field of
// pusher_internal:subscription_succeeded for presence channels; public
// and private channels send the event with no meaningful data.
type subscriptionSucceededPayload struct {
	Presence any `json:"presence,omitempty"`
}

// NewSubscriptionSucceeded builds the subscribe ack. presence should
// be nil for public/private channels and a channel.Data value for
// presence channels.
func NewSubscriptionSucceeded(channelName string, presence any) Envelope {
	data, _ := json.Marshal(subscriptionSucceededPayload{Presence: presence})
	return Envelope{Event: EventSubscriptionSucceeded, Channel: channelName, Data: data}
}

// memberPayload is the data field of member_added/member_removed.
type memberPayload struct {
	UserID   string         `json:"user_id"`
	UserInfo map[string]any `json:"user_info,omitempty"`
}

// NewMemberAdded builds the notification broadcast to a presence
// channel's existing subscribers when a connection joins.
func NewMemberAdded(channelName, userID string, userInfo map[string]any) Envelope {
	data, _ := json.Marshal(memberPayload{UserID: userID, UserInfo: userInfo})
	return Envelope{Event: EventMemberAdded, Channel: channelName, Data: data}
}

// NewMemberRemoved builds the notification broadcast to a presence
// channel's remaining subscribers when a connection leaves.
func NewMemberRemoved(channelName, userID string) Envelope {
	data, _ := json.Marshal(memberPayload{UserID: userID})
	return Envelope{Event: EventMemberRemoved, Channel: channelName, Data: data}
}
