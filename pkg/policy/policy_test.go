package policy

import (
	"testing"

	"github.com/rs/zerolog"
)

func newPolicy(channelMode ListMode, channels []string, privateMode ListMode, privates []string, banned []string) *Policy {
	return New(channelMode, channels, privateMode, privates, banned, zerolog.Nop())
}

func TestAllow_ChannelWhitelist(t *testing.T) {
	p := newPolicy(ModeAllow, []string{"7"}, ModeDeny, nil, nil)

	if !p.Allow("42", "7") {
		t.Error("whitelisted channel should be allowed")
	}
	if p.Allow("42", "8") {
		t.Error("channel outside whitelist should be rejected")
	}
}

func TestAllow_ChannelBlacklist(t *testing.T) {
	p := newPolicy(ModeDeny, []string{"7"}, ModeDeny, nil, nil)

	if p.Allow("42", "7") {
		t.Error("blacklisted channel should be rejected")
	}
	if !p.Allow("42", "8") {
		t.Error("channel outside blacklist should be allowed")
	}
}

func TestAllow_PrivateWhitelist(t *testing.T) {
	p := newPolicy(ModeDeny, nil, ModeAllow, []string{"42"}, nil)

	if !p.Allow("42", "") {
		t.Error("whitelisted user should be allowed in DM")
	}
	if p.Allow("99", "") {
		t.Error("user outside private whitelist should be rejected")
	}
}

func TestAllow_PrivateBlacklist(t *testing.T) {
	p := newPolicy(ModeDeny, nil, ModeDeny, []string{"42"}, nil)

	if p.Allow("42", "") {
		t.Error("blacklisted user should be rejected in DM")
	}
	if !p.Allow("99", "") {
		t.Error("user outside private blacklist should be allowed")
	}
}

// The global ban is evaluated last but is absolute: a channel or private
// whitelist hit never overrides it.
func TestAllow_GlobalBanPrecedence(t *testing.T) {
	p := newPolicy(ModeAllow, []string{"7"}, ModeAllow, []string{"42"}, []string{"42"})

	if p.Allow("42", "7") {
		t.Error("globally banned user should be rejected in whitelisted channel")
	}
	if p.Allow("42", "") {
		t.Error("globally banned user should be rejected in whitelisted DM")
	}
	if !p.Allow("43", "7") {
		t.Error("unbanned user in whitelisted channel should be allowed")
	}
}

func TestParseListMode(t *testing.T) {
	if _, err := ParseListMode("whitelist"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseListMode("blacklist"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseListMode("greylist"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
