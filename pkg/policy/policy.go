// Package policy gates which platform events are forwarded to the brain.
package policy

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ListMode selects how a surface list is interpreted.
type ListMode string

const (
	// ModeAllow forwards only ids present in the list (whitelist).
	ModeAllow ListMode = "whitelist"
	// ModeDeny forwards everything except ids present in the list (blacklist).
	ModeDeny ListMode = "blacklist"
)

// ParseListMode validates a config string as a ListMode.
func ParseListMode(s string) (ListMode, error) {
	switch ListMode(s) {
	case ModeAllow, ModeDeny:
		return ListMode(s), nil
	default:
		return "", fmt.Errorf("invalid list mode %q (want %q or %q)", s, ModeAllow, ModeDeny)
	}
}

// Policy is the read-only access configuration. It is built once at startup
// and never mutated afterwards, so Allow is safe to call from any goroutine.
type Policy struct {
	channelMode ListMode
	channels    map[string]struct{}
	privateMode ListMode
	privates    map[string]struct{}
	banned      map[string]struct{}
	log         zerolog.Logger
}

// New builds a Policy from the configured modes and id lists.
func New(channelMode ListMode, channels []string, privateMode ListMode, privates []string, banned []string, log zerolog.Logger) *Policy {
	return &Policy{
		channelMode: channelMode,
		channels:    toSet(channels),
		privateMode: privateMode,
		privates:    toSet(privates),
		banned:      toSet(banned),
		log:         log.With().Str("component", "policy").Logger(),
	}
}

// Allow reports whether a message from userID may be forwarded. An empty
// channelID means the message arrived as a direct message, which is evaluated
// against the private list instead of the channel list. The global ban is
// checked last but is absolute: no surface-level allow overrides it.
func (p *Policy) Allow(userID, channelID string) bool {
	if channelID != "" {
		if p.channelMode == ModeAllow && !contains(p.channels, channelID) {
			p.log.Warn().Str("channel_id", channelID).Msg("channel not in whitelist, message dropped")
			return false
		}
		if p.channelMode == ModeDeny && contains(p.channels, channelID) {
			p.log.Warn().Str("channel_id", channelID).Msg("channel in blacklist, message dropped")
			return false
		}
	} else {
		if p.privateMode == ModeAllow && !contains(p.privates, userID) {
			p.log.Warn().Str("user_id", userID).Msg("user not in private whitelist, message dropped")
			return false
		}
		if p.privateMode == ModeDeny && contains(p.privates, userID) {
			p.log.Warn().Str("user_id", userID).Msg("user in private blacklist, message dropped")
			return false
		}
	}
	if contains(p.banned, userID) {
		p.log.Warn().Str("user_id", userID).Msg("user in global ban list, message dropped")
		return false
	}
	return true
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func contains(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}
