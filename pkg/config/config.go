// Package config loads the bridge configuration from a JSON file with
// environment variable overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers, so id
// lists can contain both "123456789" and 123456789.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Discord DiscordConfig `json:"discord"`
	Brain   BrainConfig   `json:"brain"`
	Chat    ChatConfig    `json:"chat"`
	Voice   VoiceConfig   `json:"voice"`
	Debug   DebugConfig   `json:"debug"`
}

type DiscordConfig struct {
	Token     string `env:"MAIBRIDGE_DISCORD_TOKEN"     json:"token"`
	Heartbeat int    `env:"MAIBRIDGE_DISCORD_HEARTBEAT" json:"heartbeat"` // seconds
}

// BrainConfig locates the remote brain service.
type BrainConfig struct {
	PlatformName string `env:"MAIBRIDGE_BRAIN_PLATFORM_NAME" json:"platform_name"`
	Host         string `env:"MAIBRIDGE_BRAIN_HOST"          json:"host"`
	Port         int    `env:"MAIBRIDGE_BRAIN_PORT"          json:"port"`
}

// URL returns the websocket endpoint of the brain.
func (b BrainConfig) URL() string {
	return fmt.Sprintf("ws://%s:%d/ws", b.Host, b.Port)
}

type ChatConfig struct {
	ChannelListType string              `env:"MAIBRIDGE_CHAT_CHANNEL_LIST_TYPE" json:"channel_list_type"`
	ChannelList     FlexibleStringSlice `env:"MAIBRIDGE_CHAT_CHANNEL_LIST"      json:"channel_list"`
	PrivateListType string              `env:"MAIBRIDGE_CHAT_PRIVATE_LIST_TYPE" json:"private_list_type"`
	PrivateList     FlexibleStringSlice `env:"MAIBRIDGE_CHAT_PRIVATE_LIST"      json:"private_list"`
	BanUserID       FlexibleStringSlice `env:"MAIBRIDGE_CHAT_BAN_USER_ID"       json:"ban_user_id"`
}

type VoiceConfig struct {
	UseTTS bool `env:"MAIBRIDGE_VOICE_USE_TTS" json:"use_tts"`
}

type DebugConfig struct {
	Level string `env:"MAIBRIDGE_DEBUG_LEVEL" json:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{Heartbeat: 30},
		Brain:   BrainConfig{Host: "localhost", Port: 8000},
		Chat: ChatConfig{
			ChannelListType: "blacklist",
			PrivateListType: "blacklist",
		},
		Debug: DebugConfig{Level: "INFO"},
	}
}

// LoadConfig reads path over DefaultConfig, applies env overrides, and
// validates. A missing file is not an error; env-only configuration is a
// supported deployment mode.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields whose misconfiguration must be fatal at
// startup. Everything else degrades at runtime instead.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return errors.New("discord.token is required")
	}
	if c.Brain.PlatformName == "" {
		return errors.New("brain.platform_name is required")
	}
	if err := validListType(c.Chat.ChannelListType); err != nil {
		return fmt.Errorf("chat.channel_list_type: %w", err)
	}
	if err := validListType(c.Chat.PrivateListType); err != nil {
		return fmt.Errorf("chat.private_list_type: %w", err)
	}
	return nil
}

func validListType(s string) error {
	if s != "whitelist" && s != "blacklist" {
		return fmt.Errorf("invalid value %q (want \"whitelist\" or \"blacklist\")", s)
	}
	return nil
}
