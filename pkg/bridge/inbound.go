package bridge

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinyland-inc/maibridge/pkg/bus"
	"github.com/tinyland-inc/maibridge/pkg/envelope"
	"github.com/tinyland-inc/maibridge/pkg/platform"
	"github.com/tinyland-inc/maibridge/pkg/policy"
)

// replyPlaceholder substitutes for a referenced message that could not be
// fetched. Resolution is best-effort; a missing reference never aborts
// translation.
const replyPlaceholder = "[quoted message unavailable]"

// Inbound translates platform events into canonical envelopes and forwards
// them to the brain.
type Inbound struct {
	platformName string
	policy       *policy.Policy
	client       platform.Client
	sender       Sender
	log          zerolog.Logger
}

func NewInbound(platformName string, pol *policy.Policy, client platform.Client, sender Sender, log zerolog.Logger) *Inbound {
	return &Inbound{
		platformName: platformName,
		policy:       pol,
		client:       client,
		sender:       sender,
		log:          log.With().Str("component", "inbound").Logger(),
	}
}

// Handle translates and forwards one event. Policy rejections and empty
// messages produce nothing; a send failure is logged and the envelope is
// dropped (at-most-once toward the brain).
func (t *Inbound) Handle(ctx context.Context, ev bus.Event) {
	channelID := ev.ChannelID
	if ev.DM {
		channelID = ""
	}
	if !t.policy.Allow(ev.SenderID, channelID) {
		return
	}

	env, ok := t.translate(ctx, ev)
	if !ok {
		return
	}

	frame, err := env.Encode()
	if err != nil {
		t.log.Error().Err(err).Str("message_id", ev.MessageID).Msg("encoding envelope")
		return
	}
	t.log.Debug().RawJSON("envelope", frame).Msg("forwarding to brain")

	if err := t.sender.Send(ctx, frame); err != nil {
		t.log.Warn().Err(err).Str("message_id", ev.MessageID).Msg("send to brain failed, envelope dropped")
	}
}

func (t *Inbound) translate(ctx context.Context, ev bus.Event) (*envelope.Envelope, bool) {
	segments := t.buildSegments(ctx, ev)
	if len(segments) == 0 {
		t.log.Debug().Str("message_id", ev.MessageID).Msg("nothing to forward")
		return nil, false
	}

	info := envelope.MessageInfo{
		Platform:  t.platformName,
		MessageID: ev.MessageID,
		Time:      eventTime(ev),
		User: envelope.UserInfo{
			Platform:     t.platformName,
			UserID:       ev.SenderID,
			UserNickname: ev.SenderName,
			UserCardname: ev.SenderCard,
		},
		Format: envelope.FormatInfo{
			ContentFormat: []string{"text", "image", "emoji"},
			AcceptFormat:  []string{"text", "image", "emoji", "reply"},
		},
	}
	if !ev.DM {
		info.Group = &envelope.GroupInfo{
			Platform:  t.platformName,
			GroupID:   ev.ChannelID,
			GroupName: ev.ChannelName,
		}
	}

	return &envelope.Envelope{
		Info:    info,
		Segment: envelope.NewSegList(segments...),
	}, true
}

// buildSegments assembles the ordered content: reply reference first, then
// the text body, then one image segment per image attachment. Non-image
// attachments are skipped.
func (t *Inbound) buildSegments(ctx context.Context, ev bus.Event) []envelope.Segment {
	var segments []envelope.Segment

	if ev.ReplyToID != "" {
		if _, err := t.client.FetchMessage(ctx, ev.ChannelID, ev.ReplyToID); err != nil {
			t.log.Debug().Err(err).Str("reply_to", ev.ReplyToID).Msg("referenced message lookup failed")
			segments = append(segments, envelope.NewText(replyPlaceholder))
		} else {
			segments = append(segments, envelope.NewReply(ev.ReplyToID))
		}
	}

	if ev.Content != "" {
		segments = append(segments, envelope.NewText(ev.Content))
	}

	for _, a := range ev.Attachments {
		if !strings.HasPrefix(a.ContentType, "image/") {
			continue
		}
		segments = append(segments, envelope.NewImage(a.URL))
	}

	return segments
}

func eventTime(ev bus.Event) float64 {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return float64(ts.UnixMilli()) / 1000
}
