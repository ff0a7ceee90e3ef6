package transport

import "context"

// Destination addresses one channel on one server. Both ids are opaque
// platform identifiers; the registry owns their meaning.
type Destination struct {
	ServerID  string
	ChannelID string
}

// Announcement is a rendered release notification. Formatting beyond
// these fields is the messenger's concern.
type Announcement struct {
	Title    string
	Body     string
	ImageURL string
	Link     string
}

// Messenger is the narrow surface the dispatcher needs from the chat
// platform. Implementations resolve the live channel handle per call;
// a destination that no longer exists surfaces as a send error.
type Messenger interface {
	SendAnnouncement(ctx context.Context, dest Destination, ann Announcement) error

	// MentionRole posts a follow-up message pinging the given role in the
	// destination channel.
	MentionRole(ctx context.Context, dest Destination, roleID string) error
}
