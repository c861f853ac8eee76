package bridge

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tinyland-inc/maibridge/pkg/envelope"
	"github.com/tinyland-inc/maibridge/pkg/platform"
)

// Outbound translates brain envelopes into platform sends. Command segments
// are peeled off to the dispatcher; everything else flattens into one
// platform message.
type Outbound struct {
	client       platform.Client
	dispatcher   *Dispatcher
	voiceEnabled bool
	log          zerolog.Logger
}

func NewOutbound(client platform.Client, dispatcher *Dispatcher, voiceEnabled bool, log zerolog.Logger) *Outbound {
	return &Outbound{
		client:       client,
		dispatcher:   dispatcher,
		voiceEnabled: voiceEnabled,
		log:          log.With().Str("component", "outbound").Logger(),
	}
}

// flatPayload accumulates the depth-first flattening of a segment tree.
type flatPayload struct {
	texts    []string
	files    []platform.File
	replyTo  string
	commands []*envelope.CommandData
}

func (p *flatPayload) content() string {
	return strings.Join(p.texts, " ")
}

func (p *flatPayload) empty() bool {
	return len(p.texts) == 0 && len(p.files) == 0 && p.replyTo == ""
}

// Handle delivers one envelope from the brain to the platform. Failure to
// resolve the send target is logged and the envelope abandoned; it never
// propagates.
func (t *Outbound) Handle(ctx context.Context, env *envelope.Envelope) {
	var p flatPayload
	t.flatten(env.Segment, &p)

	for _, cmd := range p.commands {
		t.dispatcher.Async(ctx, env, cmd)
	}

	if p.empty() {
		if len(p.commands) == 0 {
			t.log.Debug().Str("message_id", env.Info.MessageID).Msg("envelope flattened to nothing")
		}
		return
	}

	out := &platform.Outgoing{
		Content:   p.content(),
		Files:     p.files,
		ReplyToID: p.replyTo,
	}

	var err error
	if env.Info.Group != nil {
		err = t.client.SendToChannel(ctx, env.Info.Group.GroupID, out)
	} else {
		err = t.client.SendDirect(ctx, env.Info.User.UserID, out)
	}
	if err != nil {
		t.log.Error().Err(err).Str("message_id", env.Info.MessageID).Msg("platform send failed, envelope abandoned")
		return
	}
	t.log.Info().Str("message_id", env.Info.MessageID).Msg("delivered brain message")
}

// flatten walks the segment tree depth-first, order-preserving. Duplicate
// reply segments collapse to the most recently encountered one, which takes
// the reference slot at the head of the platform payload rather than its
// traversal position.
func (t *Outbound) flatten(seg envelope.Segment, p *flatPayload) {
	switch seg.Type {
	case envelope.TypeText:
		if seg.Text != "" {
			p.texts = append(p.texts, seg.Text)
		}
	case envelope.TypeImage:
		t.addImage(seg.File, p)
	case envelope.TypeEmoji:
		t.addEmoji(seg.File, p)
	case envelope.TypeVoice:
		if !t.voiceEnabled {
			t.log.Warn().Msg("voice segment dropped: voice disabled in config")
			return
		}
		t.addVoice(seg.File, p)
	case envelope.TypeReply:
		if p.replyTo != "" {
			t.log.Debug().Msg("multiple reply segments, keeping the latest")
		}
		p.replyTo = seg.ReplyTo
	case envelope.TypeCommand:
		if seg.Command != nil {
			p.commands = append(p.commands, seg.Command)
		}
	case envelope.TypeSegList:
		for _, child := range seg.Children {
			t.flatten(child, p)
		}
	}
}

func (t *Outbound) addImage(data string, p *flatPayload) {
	if isURL(data) {
		// No pass-through upload for remote files; surface the link instead.
		p.texts = append(p.texts, data)
		return
	}
	raw, err := decodePayload(data)
	if err != nil {
		t.log.Warn().Err(err).Msg("image segment dropped: undecodable payload")
		return
	}
	p.files = append(p.files, platform.File{
		Name:        fmt.Sprintf("image_%s.png", uuid.New()),
		ContentType: "image/png",
		Reader:      bytes.NewReader(raw),
	})
}

// addEmoji queues an emoji as an animated image attachment, re-encoding to
// GIF when the source payload is in any other format.
func (t *Outbound) addEmoji(data string, p *flatPayload) {
	raw, err := decodePayload(data)
	if err != nil {
		t.log.Warn().Err(err).Msg("emoji segment dropped: undecodable payload")
		return
	}
	if !isGIF(raw) {
		converted, err := toGIF(raw)
		if err != nil {
			t.log.Warn().Err(err).Msg("emoji segment dropped: GIF conversion failed")
			return
		}
		raw = converted
	}
	p.files = append(p.files, platform.File{
		Name:        fmt.Sprintf("emoji_%s.gif", uuid.New()),
		ContentType: "image/gif",
		Reader:      bytes.NewReader(raw),
	})
}

func (t *Outbound) addVoice(data string, p *flatPayload) {
	raw, err := decodePayload(data)
	if err != nil {
		t.log.Warn().Err(err).Msg("voice segment dropped: undecodable payload")
		return
	}
	p.files = append(p.files, platform.File{
		Name:        fmt.Sprintf("voice_%s.ogg", uuid.New()),
		ContentType: "audio/ogg",
		Reader:      bytes.NewReader(raw),
	})
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
