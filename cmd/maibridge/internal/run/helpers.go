package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinyland-inc/maibridge/pkg/bridge"
	"github.com/tinyland-inc/maibridge/pkg/bus"
	"github.com/tinyland-inc/maibridge/pkg/config"
	"github.com/tinyland-inc/maibridge/pkg/correlator"
	"github.com/tinyland-inc/maibridge/pkg/platform"
	"github.com/tinyland-inc/maibridge/pkg/policy"
	"github.com/tinyland-inc/maibridge/pkg/transport"
)

const commandTimeout = 30 * time.Second

func runCmd(configPath string, debug bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	log := newLogger(cfg, debug)

	queue := bus.NewQueue()
	table := correlator.NewTable(log)
	tr := transport.New(transport.Config{
		URL:          cfg.Brain.URL(),
		PingInterval: time.Duration(cfg.Discord.Heartbeat) * time.Second,
	}, log)

	pol, err := buildPolicy(cfg, log)
	if err != nil {
		return err
	}

	discord, err := platform.NewDiscord(cfg.Discord.Token, queue, log)
	if err != nil {
		return fmt.Errorf("error creating discord client: %w", err)
	}

	dispatcher := bridge.NewDispatcher(tr, table, commandTimeout, log)
	inbound := bridge.NewInbound(cfg.Brain.PlatformName, pol, discord, tr, log)
	outbound := bridge.NewOutbound(discord, dispatcher, cfg.Voice.UseTTS, log)
	loop := bridge.NewLoop(queue, tr, table, inbound, outbound, dispatcher, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := discord.Start(ctx); err != nil {
		return fmt.Errorf("error starting discord client: %w", err)
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	log.Info().Str("brain", cfg.Brain.URL()).Str("platform", cfg.Brain.PlatformName).Msg("bridge started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")

	// Stop accepting new platform events first, then tear down the transport
	// and timer loops; in-flight command waits resolve before Run returns.
	if err := discord.Stop(); err != nil {
		log.Warn().Err(err).Msg("closing discord session")
	}
	queue.Close()
	cancel()
	<-loopDone

	log.Info().Msg("bridge stopped")
	return nil
}

func newLogger(cfg *config.Config, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug || strings.EqualFold(cfg.Debug.Level, "debug") {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func buildPolicy(cfg *config.Config, log zerolog.Logger) (*policy.Policy, error) {
	channelMode, err := policy.ParseListMode(cfg.Chat.ChannelListType)
	if err != nil {
		return nil, err
	}
	privateMode, err := policy.ParseListMode(cfg.Chat.PrivateListType)
	if err != nil {
		return nil, err
	}
	return policy.New(channelMode, cfg.Chat.ChannelList, privateMode, cfg.Chat.PrivateList, cfg.Chat.BanUserID, log), nil
}
