package bus

import "time"

// Attachment is one file attached to a platform event.
type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

// Event is a platform-native inbound message, queued between the platform
// SDK callback goroutine and the bridge loop. DM is true when the message
// arrived outside any shared channel.
type Event struct {
	MessageID   string       `json:"message_id"`
	Time        time.Time    `json:"time"`
	SenderID    string       `json:"sender_id"`
	SenderName  string       `json:"sender_name"`
	SenderCard  string       `json:"sender_card"` // display name, falls back to SenderName
	ChannelID   string       `json:"channel_id"`
	ChannelName string       `json:"channel_name"`
	GuildID     string       `json:"guild_id,omitempty"`
	DM          bool         `json:"dm"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReplyToID   string       `json:"reply_to_id,omitempty"`
}
