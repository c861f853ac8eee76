// Package envelope defines the platform-neutral message representation
// exchanged with the brain service, and its JSON wire codec.
package envelope

import "encoding/json"

// UserInfo identifies the sender of a message.
type UserInfo struct {
	Platform     string `json:"platform"`
	UserID       string `json:"user_id"`
	UserNickname string `json:"user_nickname"`
	UserCardname string `json:"user_cardname"`
}

// GroupInfo identifies the shared channel a message was sent in. A nil
// GroupInfo on an envelope means the message is a direct message.
type GroupInfo struct {
	Platform  string `json:"platform"`
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
}

// FormatInfo advertises which segment kinds this side produces and accepts.
type FormatInfo struct {
	ContentFormat []string `json:"content_format"`
	AcceptFormat  []string `json:"accept_format"`
}

// MessageInfo is the metadata half of an envelope.
type MessageInfo struct {
	Platform  string     `json:"platform"`
	MessageID string     `json:"message_id"`
	Time      float64    `json:"time"`
	User      UserInfo   `json:"user_info"`
	Group     *GroupInfo `json:"group_info"`
	Format    FormatInfo `json:"format_info"`
}

// Envelope is one canonical message. Exactly one top-level segment, possibly
// a seglist. Envelopes are handed off between components single-owner style
// and never mutated after construction.
type Envelope struct {
	Info    MessageInfo `json:"message_info"`
	Segment Segment     `json:"message_segment"`
}

// Encode serializes the envelope to its wire form.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire frame into an envelope. Callers treat a failure here
// as a decode error: drop the frame and log, never crash.
func Decode(b []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// CommandRequest is a privileged command sent to the platform side of the
// bridge. Echo carries the correlation id the response must repeat.
type CommandRequest struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

// CommandResponse is the correlated reply to a CommandRequest.
type CommandResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Echo    string `json:"echo"`
}
