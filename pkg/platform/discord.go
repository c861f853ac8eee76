package platform

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/tinyland-inc/maibridge/pkg/bus"
)

// Discord wraps a discordgo session as both the inbound event source and the
// Client capability set.
type Discord struct {
	session *discordgo.Session
	queue   *bus.Queue
	log     zerolog.Logger
}

// NewDiscord creates the session but does not open the gateway connection
// until Start.
func NewDiscord(token string, queue *bus.Queue, log zerolog.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return &Discord{
		session: session,
		queue:   queue,
		log:     log.With().Str("component", "discord").Logger(),
	}, nil
}

// Start registers the message handler and opens the gateway connection.
// Handler callbacks publish to the queue in arrival order; discordgo invokes
// them from a single event goroutine per session.
func (d *Discord) Start(ctx context.Context) error {
	d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		d.handleMessage(ctx, s, m)
	})
	d.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		d.log.Info().Str("user", r.User.Username).Msg("discord gateway ready")
	})

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	return nil
}

func (d *Discord) Stop() error {
	return d.session.Close()
}

func (d *Discord) handleMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	ev := bus.Event{
		MessageID:  m.ID,
		Time:       m.Timestamp,
		SenderID:   m.Author.ID,
		SenderName: m.Author.Username,
		SenderCard: displayName(m),
		ChannelID:  m.ChannelID,
		GuildID:    m.GuildID,
		DM:         m.GuildID == "",
		Content:    m.Content,
	}
	if !ev.DM {
		name, err := d.ChannelName(ctx, m.ChannelID)
		if err != nil {
			d.log.Debug().Err(err).Str("channel_id", m.ChannelID).Msg("channel name lookup failed")
		}
		ev.ChannelName = name
	}
	if m.MessageReference != nil {
		ev.ReplyToID = m.MessageReference.MessageID
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		ev.Attachments = append(ev.Attachments, bus.Attachment{
			URL:         a.URL,
			ContentType: a.ContentType,
			Filename:    a.Filename,
		})
	}

	if err := d.queue.Publish(ctx, ev); err != nil {
		d.log.Warn().Err(err).Str("message_id", ev.MessageID).Msg("dropping inbound event")
	}
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// SendToChannel posts a message to a shared channel.
func (d *Discord) SendToChannel(ctx context.Context, channelID string, out *Outgoing) error {
	_, err := d.session.ChannelMessageSendComplex(channelID, buildSend(channelID, out), discordgo.WithContext(ctx))
	return err
}

// SendDirect opens (or reuses) the DM channel for a user and posts there.
func (d *Discord) SendDirect(ctx context.Context, userID string, out *Outgoing) error {
	ch, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("resolving DM channel for user %s: %w", userID, err)
	}
	_, err = d.session.ChannelMessageSendComplex(ch.ID, buildSend(ch.ID, out), discordgo.WithContext(ctx))
	return err
}

// ChannelName resolves a channel's display name, preferring the state cache.
func (d *Discord) ChannelName(ctx context.Context, channelID string) (string, error) {
	if ch, err := d.session.State.Channel(channelID); err == nil {
		return ch.Name, nil
	}
	ch, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return ch.Name, nil
}

// FetchMessage retrieves a single message by id.
func (d *Discord) FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	msg, err := d.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := &Message{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		Content:   msg.Content,
	}
	if msg.Author != nil {
		out.AuthorID = msg.Author.ID
	}
	return out, nil
}

func buildSend(channelID string, out *Outgoing) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: out.Content}
	for _, f := range out.Files {
		send.Files = append(send.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      f.Reader,
		})
	}
	if out.ReplyToID != "" {
		send.Reference = &discordgo.MessageReference{
			MessageID: out.ReplyToID,
			ChannelID: channelID,
		}
	}
	return send
}
