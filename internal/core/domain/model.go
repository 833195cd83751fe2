package domain

// ChannelKind tells whether a message arrived via one-to-one chat or a
// shared group chat.
type ChannelKind string

const (
	Direct ChannelKind = "direct"
	Group  ChannelKind = "group"
)

// Message is an inbound message as delivered by a transport. It is
// read-only for the dispatch pipeline.
type Message struct {
	// Body is the raw message text.
	Body string
	// Kind is the channel the message arrived on.
	Kind ChannelKind
	// Sender is the durable identity of the sender, if the transport
	// could resolve it. Group transports with anonymous rooms may leave
	// it empty; the dispatcher then falls back to a roster lookup.
	Sender Identity
	// Room is the group address, group messages only.
	Room string
	// Nickname is the sender's display name inside Room, group messages only.
	Nickname string
	// Address is the transport address replies should be sent to.
	Address string
}

// ReplyAddress returns where a reply to this message should go.
func (m *Message) ReplyAddress() string {
	if m.Kind == Group {
		return m.Room
	}

	return m.Address
}
