// Package platform isolates the bridge from the chat platform SDK behind the
// narrow capability set the translators need: send to a channel, send a
// direct message, resolve a channel, fetch a message. Tests supply a fake
// Client with no network access.
package platform

import (
	"context"
	"io"
)

// File is one outbound attachment.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Outgoing is a platform send payload assembled by the outbound translator.
type Outgoing struct {
	Content   string
	Files     []File
	ReplyToID string // message id to reference, empty for none
}

// Message is the minimal view of a fetched platform message.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
}

// Client is the capability set consumed from the platform SDK.
type Client interface {
	SendToChannel(ctx context.Context, channelID string, out *Outgoing) error
	SendDirect(ctx context.Context, userID string, out *Outgoing) error
	ChannelName(ctx context.Context, channelID string) (string, error)
	FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error)
}
