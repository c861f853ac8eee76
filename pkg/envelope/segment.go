package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownSegment is returned when decoding a segment whose type tag is not
// one of the known kinds.
var ErrUnknownSegment = errors.New("unknown segment type")

// SegmentType enumerates the content kinds a segment can carry. The set is
// closed: every switch over it in this repo handles all seven kinds.
type SegmentType string

const (
	TypeText    SegmentType = "text"
	TypeImage   SegmentType = "image"
	TypeEmoji   SegmentType = "emoji"
	TypeVoice   SegmentType = "voice"
	TypeReply   SegmentType = "reply"
	TypeCommand SegmentType = "command"
	TypeSegList SegmentType = "seglist"
)

// CommandData is the payload of a command segment.
type CommandData struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Segment is one node of the content tree inside an envelope. It is a tagged
// union: Type selects which of the payload fields is meaningful. Segments are
// immutable once constructed; use the New* constructors.
type Segment struct {
	Type SegmentType

	Text     string       // text
	File     string       // image, emoji, voice: URL or base64 payload
	ReplyTo  string       // reply: target message id
	Command  *CommandData // command
	Children []Segment    // seglist: ordered, recursive (tree, no cycles)
}

func NewText(text string) Segment {
	return Segment{Type: TypeText, Text: text}
}

func NewImage(file string) Segment {
	return Segment{Type: TypeImage, File: file}
}

func NewEmoji(file string) Segment {
	return Segment{Type: TypeEmoji, File: file}
}

func NewVoice(file string) Segment {
	return Segment{Type: TypeVoice, File: file}
}

func NewReply(messageID string) Segment {
	return Segment{Type: TypeReply, ReplyTo: messageID}
}

func NewCommand(name string, args map[string]any) Segment {
	return Segment{Type: TypeCommand, Command: &CommandData{Name: name, Args: args}}
}

// NewSegList wraps children in a seglist segment. Zero-value children (empty
// placeholders left behind by translation steps that produced nothing) are
// pruned so they never appear on the wire.
func NewSegList(children ...Segment) Segment {
	pruned := make([]Segment, 0, len(children))
	for _, c := range children {
		if c.Type == "" {
			continue
		}
		pruned = append(pruned, c)
	}
	return Segment{Type: TypeSegList, Children: pruned}
}

// wireSegment is the {"type": ..., "data": ...} JSON shape.
type wireSegment struct {
	Type SegmentType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s Segment) MarshalJSON() ([]byte, error) {
	var data any
	switch s.Type {
	case TypeText:
		data = s.Text
	case TypeImage, TypeEmoji, TypeVoice:
		data = s.File
	case TypeReply:
		data = s.ReplyTo
	case TypeCommand:
		data = s.Command
	case TypeSegList:
		if s.Children == nil {
			data = []Segment{}
		} else {
			data = s.Children
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSegment, s.Type)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireSegment{Type: s.Type, Data: raw})
}

func (s *Segment) UnmarshalJSON(b []byte) error {
	var w wireSegment
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	out := Segment{Type: w.Type}
	switch w.Type {
	case TypeText:
		if err := json.Unmarshal(w.Data, &out.Text); err != nil {
			return fmt.Errorf("text segment: %w", err)
		}
	case TypeImage, TypeEmoji, TypeVoice:
		if err := json.Unmarshal(w.Data, &out.File); err != nil {
			return fmt.Errorf("%s segment: %w", w.Type, err)
		}
	case TypeReply:
		if err := json.Unmarshal(w.Data, &out.ReplyTo); err != nil {
			return fmt.Errorf("reply segment: %w", err)
		}
	case TypeCommand:
		var cmd CommandData
		if err := json.Unmarshal(w.Data, &cmd); err != nil {
			return fmt.Errorf("command segment: %w", err)
		}
		out.Command = &cmd
	case TypeSegList:
		if err := json.Unmarshal(w.Data, &out.Children); err != nil {
			return fmt.Errorf("seglist segment: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSegment, w.Type)
	}

	*s = out
	return nil
}
