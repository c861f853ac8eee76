package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/maibridge/pkg/correlator"
	"github.com/tinyland-inc/maibridge/pkg/envelope"
)

func commandEnvelope(group bool) *envelope.Envelope {
	env := brainEnvelope(envelope.Segment{}, group)
	return env
}

func dispatchAndRespond(t *testing.T, cmd *envelope.CommandData, status, message string) Outcome {
	t.Helper()

	sender := newFakeSender()
	table := correlator.NewTable(zerolog.Nop(), correlator.WithPollInterval(5*time.Millisecond))
	d := NewDispatcher(sender, table, time.Second, zerolog.Nop())

	outcome := make(chan Outcome, 1)
	go func() {
		outcome <- d.Dispatch(context.Background(), commandEnvelope(true), cmd)
	}()

	select {
	case frame := <-sender.sent:
		var req envelope.CommandRequest
		require.NoError(t, json.Unmarshal(frame, &req))
		require.NotEmpty(t, req.Echo)
		resp, err := json.Marshal(envelope.CommandResponse{Status: status, Message: message, Echo: req.Echo})
		require.NoError(t, err)
		table.Put(req.Echo, resp)
	case <-time.After(2 * time.Second):
		t.Fatal("command request never reached the sender")
	}

	select {
	case o := <-outcome:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not resolve")
		return OutcomeFailed
	}
}

func TestDispatch_ConfirmedOnOKStatus(t *testing.T) {
	cmd := &envelope.CommandData{Name: CmdGroupBan, Args: map[string]any{
		"qq_id": "42", "duration": float64(600),
	}}
	assert.Equal(t, OutcomeConfirmed, dispatchAndRespond(t, cmd, "ok", ""))
}

func TestDispatch_FailedOnErrorStatus(t *testing.T) {
	cmd := &envelope.CommandData{Name: CmdGroupKick, Args: map[string]any{"qq_id": "42"}}
	assert.Equal(t, OutcomeFailed, dispatchAndRespond(t, cmd, "failed", "missing permission"))
}

func TestDispatch_WholeBanPassesEnableFlag(t *testing.T) {
	sender := newFakeSender()
	table := correlator.NewTable(zerolog.Nop(), correlator.WithPollInterval(5*time.Millisecond))
	d := NewDispatcher(sender, table, 50*time.Millisecond, zerolog.Nop())

	cmd := &envelope.CommandData{Name: CmdGroupWholeBan, Args: map[string]any{"enable": true}}
	go d.Dispatch(context.Background(), commandEnvelope(true), cmd)

	select {
	case frame := <-sender.sent:
		var req struct {
			Action string `json:"action"`
			Params struct {
				GroupID int64 `json:"group_id"`
				Enable  bool  `json:"enable"`
			} `json:"params"`
		}
		require.NoError(t, json.Unmarshal(frame, &req))
		assert.Equal(t, "set_group_whole_ban", req.Action)
		assert.Equal(t, int64(7), req.Params.GroupID)
		assert.True(t, req.Params.Enable)
	case <-time.After(2 * time.Second):
		t.Fatal("command request never reached the sender")
	}
}

func TestDispatch_TimedOutWithoutResponse(t *testing.T) {
	sender := newFakeSender()
	table := correlator.NewTable(zerolog.Nop(), correlator.WithPollInterval(5*time.Millisecond))
	d := NewDispatcher(sender, table, 30*time.Millisecond, zerolog.Nop())

	cmd := &envelope.CommandData{Name: CmdGroupKick, Args: map[string]any{"qq_id": "42"}}
	got := d.Dispatch(context.Background(), commandEnvelope(true), cmd)

	assert.Equal(t, OutcomeTimedOut, got)
	assert.Len(t, sender.sentFrames(), 1)
}

func TestDispatch_SendFailure(t *testing.T) {
	sender := newFakeSender()
	sender.err = errors.New("not connected")
	table := correlator.NewTable(zerolog.Nop())
	d := NewDispatcher(sender, table, time.Second, zerolog.Nop())

	cmd := &envelope.CommandData{Name: CmdGroupKick, Args: map[string]any{"qq_id": "42"}}
	got := d.Dispatch(context.Background(), commandEnvelope(true), cmd)

	assert.Equal(t, OutcomeFailed, got)
}

func TestDispatch_ValidationRejectsBeforeSending(t *testing.T) {
	cases := []struct {
		name  string
		group bool
		cmd   *envelope.CommandData
	}{
		{
			name:  "unknown command",
			group: true,
			cmd:   &envelope.CommandData{Name: "SELF_DESTRUCT", Args: map[string]any{}},
		},
		{
			name:  "group command in a dm",
			group: false,
			cmd:   &envelope.CommandData{Name: CmdGroupKick, Args: map[string]any{"qq_id": "42"}},
		},
		{
			name:  "ban without duration",
			group: true,
			cmd:   &envelope.CommandData{Name: CmdGroupBan, Args: map[string]any{"qq_id": "42"}},
		},
		{
			name:  "ban with zero duration",
			group: true,
			cmd:   &envelope.CommandData{Name: CmdGroupBan, Args: map[string]any{"qq_id": "42", "duration": float64(0)}},
		},
		{
			name:  "ban past the 30 day ceiling",
			group: true,
			cmd:   &envelope.CommandData{Name: CmdGroupBan, Args: map[string]any{"qq_id": "42", "duration": float64(maxBanDuration + 1)}},
		},
		{
			name:  "kick with negative user id",
			group: true,
			cmd:   &envelope.CommandData{Name: CmdGroupKick, Args: map[string]any{"qq_id": "-3"}},
		},
		{
			name:  "whole ban without enable flag",
			group: true,
			cmd:   &envelope.CommandData{Name: CmdGroupWholeBan, Args: map[string]any{}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender := newFakeSender()
			d := NewDispatcher(sender, correlator.NewTable(zerolog.Nop()), time.Second, zerolog.Nop())

			got := d.Dispatch(context.Background(), commandEnvelope(tc.group), tc.cmd)

			assert.Equal(t, OutcomeInvalid, got)
			assert.Empty(t, sender.sentFrames(), "invalid command must never be sent")
		})
	}
}

func TestIntArg_AcceptsNumberAndString(t *testing.T) {
	cmd := &envelope.CommandData{Name: CmdGroupBan, Args: map[string]any{
		"as_number": float64(60),
		"as_string": "90",
		"garbage":   "ninety",
	}}

	n, err := intArg(cmd, "as_number")
	require.NoError(t, err)
	assert.Equal(t, int64(60), n)

	n, err = intArg(cmd, "as_string")
	require.NoError(t, err)
	assert.Equal(t, int64(90), n)

	_, err = intArg(cmd, "garbage")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
