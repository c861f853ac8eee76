package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tinyland-inc/maibridge/pkg/correlator"
	"github.com/tinyland-inc/maibridge/pkg/envelope"
)

// Moderation command names as the brain issues them, with the platform-side
// action each maps to.
const (
	CmdGroupBan      = "GROUP_BAN"
	CmdGroupWholeBan = "GROUP_WHOLE_BAN"
	CmdGroupKick     = "GROUP_KICK"

	actionGroupBan      = "set_group_ban"
	actionGroupWholeBan = "set_group_whole_ban"
	actionGroupKick     = "set_group_kick"
)

// maxBanDuration is the hard ceiling on a temporary restriction: 30 days.
const maxBanDuration = 2592000

// Outcome is the terminal state of one dispatched command.
type Outcome int

const (
	OutcomeInvalid Outcome = iota // validation failed, nothing was sent
	OutcomeConfirmed
	OutcomeFailed
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalid:
		return "invalid"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// ValidationError reports why a command never reached the transport.
type ValidationError struct {
	Command string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("command %s: %s", e.Command, e.Reason)
}

type banParams struct {
	GroupID  int64 `json:"group_id"`
	UserID   int64 `json:"user_id"`
	Duration int64 `json:"duration"`
}

type wholeBanParams struct {
	GroupID int64 `json:"group_id"`
	Enable  bool  `json:"enable"`
}

type kickParams struct {
	GroupID          int64 `json:"group_id"`
	UserID           int64 `json:"user_id"`
	RejectAddRequest bool  `json:"reject_add_request"`
}

// Dispatcher validates privileged moderation commands, sends them over the
// transport with a fresh correlation id, and awaits the correlated reply.
type Dispatcher struct {
	sender  Sender
	table   *correlator.Table
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, table *correlator.Table, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		sender:  sender,
		table:   table,
		timeout: timeout,
		log:     log.With().Str("component", "dispatcher").Logger(),
	}
}

// Async runs Dispatch on its own goroutine so the brain consumer never
// blocks behind a 30s response wait.
func (d *Dispatcher) Async(ctx context.Context, env *envelope.Envelope, cmd *envelope.CommandData) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Dispatch(ctx, env, cmd)
	}()
}

// Wait blocks until all in-flight commands have resolved, via response or
// timeout. Called during shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch runs one command to a terminal outcome. Validation failures abort
// before anything is sent; a missing correlated response yields OutcomeTimedOut,
// logged as a warning and never escalated.
func (d *Dispatcher) Dispatch(ctx context.Context, env *envelope.Envelope, cmd *envelope.CommandData) Outcome {
	action, params, err := buildRequest(cmd, env.Info.Group)
	if err != nil {
		d.log.Error().Err(err).Str("command", cmd.Name).Msg("command validation failed")
		return OutcomeInvalid
	}

	echo := uuid.New().String()
	frame, err := json.Marshal(envelope.CommandRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		d.log.Error().Err(err).Str("command", cmd.Name).Msg("encoding command request")
		return OutcomeFailed
	}
	if err := d.sender.Send(ctx, frame); err != nil {
		d.log.Error().Err(err).Str("command", cmd.Name).Msg("sending command request")
		return OutcomeFailed
	}

	payload, err := d.table.Await(ctx, echo, d.timeout)
	if err != nil {
		d.log.Warn().Err(err).Str("command", cmd.Name).Str("echo", echo).Msg("no response for command")
		if err == correlator.ErrTimeout {
			return OutcomeTimedOut
		}
		return OutcomeFailed
	}

	var resp envelope.CommandResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		d.log.Warn().Err(err).Str("command", cmd.Name).Msg("undecodable command response")
		return OutcomeFailed
	}
	if resp.Status != "ok" {
		d.log.Warn().Str("command", cmd.Name).Str("status", resp.Status).Str("detail", resp.Message).Msg("command rejected by platform side")
		return OutcomeFailed
	}

	d.log.Info().Str("command", cmd.Name).Msg("command confirmed")
	return OutcomeConfirmed
}

// buildRequest validates the command arguments against the group context and
// produces the wire action and params.
func buildRequest(cmd *envelope.CommandData, group *envelope.GroupInfo) (string, any, error) {
	groupID, err := requireGroup(cmd.Name, group)
	if err != nil {
		return "", nil, err
	}

	switch cmd.Name {
	case CmdGroupBan:
		userID, err := intArg(cmd, "qq_id")
		if err != nil {
			return "", nil, err
		}
		duration, err := intArg(cmd, "duration")
		if err != nil {
			return "", nil, err
		}
		if duration <= 0 {
			return "", nil, &ValidationError{cmd.Name, "duration must be positive"}
		}
		if duration > maxBanDuration {
			return "", nil, &ValidationError{cmd.Name, "duration exceeds 30 day ceiling"}
		}
		if userID <= 0 {
			return "", nil, &ValidationError{cmd.Name, "invalid user id"}
		}
		return actionGroupBan, banParams{GroupID: groupID, UserID: userID, Duration: duration}, nil

	case CmdGroupWholeBan:
		enable, ok := cmd.Args["enable"].(bool)
		if !ok {
			return "", nil, &ValidationError{cmd.Name, "enable must be a boolean"}
		}
		return actionGroupWholeBan, wholeBanParams{GroupID: groupID, Enable: enable}, nil

	case CmdGroupKick:
		userID, err := intArg(cmd, "qq_id")
		if err != nil {
			return "", nil, err
		}
		if userID <= 0 {
			return "", nil, &ValidationError{cmd.Name, "invalid user id"}
		}
		return actionGroupKick, kickParams{GroupID: groupID, UserID: userID, RejectAddRequest: false}, nil

	default:
		return "", nil, &ValidationError{cmd.Name, "unknown command"}
	}
}

func requireGroup(name string, group *envelope.GroupInfo) (int64, error) {
	if group == nil {
		return 0, &ValidationError{name, "group-scoped command outside a group"}
	}
	id, err := strconv.ParseInt(group.GroupID, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ValidationError{name, "invalid group id"}
	}
	return id, nil
}

// intArg reads a numeric argument that may arrive as a JSON number or a
// numeric string.
func intArg(cmd *envelope.CommandData, key string) (int64, error) {
	v, ok := cmd.Args[key]
	if !ok {
		return 0, &ValidationError{cmd.Name, fmt.Sprintf("missing argument %q", key)}
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, &ValidationError{cmd.Name, fmt.Sprintf("argument %q is not numeric", key)}
		}
		return parsed, nil
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0, &ValidationError{cmd.Name, fmt.Sprintf("argument %q is not numeric", key)}
		}
		return parsed, nil
	default:
		return 0, &ValidationError{cmd.Name, fmt.Sprintf("argument %q is not numeric", key)}
	}
}
