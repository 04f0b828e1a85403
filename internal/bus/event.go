package bus

import "time"

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Transport events, raised by the realtime channel handler.
const (
	TransportConnected       = "transport.connected"
	TransportDisconnected    = "transport.disconnected"
	TransportConnectError    = "transport.connect_error"
	TransportReconnectFailed = "transport.reconnect_failed"
	TransportMessage         = "transport.message"
	TransportMessageDeleted  = "transport.message_deleted"
	TransportStateChanged    = "transport.state_changed"
)

// Conversation events, raised by the sync engine.
const (
	ConversationUpdated      = "conversation.updated"
	ConversationNotice       = "conversation.notice"
	ConversationPhaseChanged = "conversation.phase_changed"
)

// Session events.
const (
	SessionStarted = "session.started"
	SessionEnded   = "session.ended"
	SessionExpired = "session.expired"
)

// Directory events.
const (
	ContactsUpdated = "contacts.updated"
)

// Outbox events, raised once a send resolves.
const (
	OutboxSendAck    = "outbox.send_ack"
	OutboxSendFailed = "outbox.send_failed"
)
