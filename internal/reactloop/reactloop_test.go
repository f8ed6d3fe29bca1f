package reactloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeStreamer replays one canned slice of StreamDelta per call,
// closing the channels when exhausted, to drive the loop
// deterministically without a real model.
type fakeStreamer struct {
	turns [][]StreamDelta
	calls int
}

func (f *fakeStreamer) Stream(_ context.Context, _ []Message, _ []ToolSchema) (<-chan StreamDelta, <-chan error) {
	deltas := make(chan StreamDelta, 16)
	errs := make(chan error, 1)

	var turn []StreamDelta
	if f.calls < len(f.turns) {
		turn = f.turns[f.calls]
	} else {
		turn = f.turns[len(f.turns)-1]
	}
	f.calls++

	for _, d := range turn {
		deltas <- d
	}
	close(deltas)
	close(errs)
	return deltas, errs
}

// recordingDispatcher records every dispatched tool call in order and
// returns a fixed textual result.
type recordingDispatcher struct {
	calls []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, name string, args map[string]any) (string, error) {
	d.calls = append(d.calls, name)
	return "ok", nil
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out draining events")
		}
	}
}

func TestRun_TextOnlyTurnEndsImmediately(t *testing.T) {
	streamer := &fakeStreamer{turns: [][]StreamDelta{
		{{TextDelta: "hello "}, {TextDelta: "world"}},
	}}
	dispatcher := &recordingDispatcher{}

	events := Run(context.Background(), streamer, dispatcher, nil, "system", nil, "hi")
	got := drain(t, events)

	require.Equal(t, 1, streamer.calls, "a turn with no tool calls must not loop again")
	require.Empty(t, dispatcher.calls)

	require.Equal(t, "text_delta", got[0].Type)
	require.Equal(t, "hello ", got[0].Content)
	require.Equal(t, "text_delta", got[1].Type)
	require.Equal(t, "world", got[1].Content)
	require.Equal(t, "done", got[len(got)-1].Type)
}

func TestRun_IterationCapStopsAtFifteen(t *testing.T) {
	toolTurn := []StreamDelta{
		{HasToolCallPart: true, ToolCallIndex: 0, ToolCallID: "call-1", ToolCallName: "list_files", ArgumentsDelta: `{"path":"."}`},
	}
	streamer := &fakeStreamer{turns: [][]StreamDelta{toolTurn}}
	dispatcher := &recordingDispatcher{}

	events := Run(context.Background(), streamer, dispatcher, nil, "system", nil, "explore the repo")
	got := drain(t, events)

	require.Equal(t, maxIterations, streamer.calls, "loop must stop after exactly the iteration cap")
	require.Len(t, dispatcher.calls, maxIterations)

	last := got[len(got)-1]
	require.Equal(t, "done", last.Type)
	secondToLast := got[len(got)-2]
	require.Equal(t, "text_delta", secondToLast.Type)
	require.Contains(t, secondToLast.Content, "15-iteration limit")
}

func TestRun_ToolCallsDispatchInProviderIndexOrder(t *testing.T) {
	streamer := &fakeStreamer{turns: [][]StreamDelta{
		{
			{HasToolCallPart: true, ToolCallIndex: 1, ToolCallID: "call-b", ToolCallName: "search_code", ArgumentsDelta: `{"pattern":"x"}`},
			{HasToolCallPart: true, ToolCallIndex: 0, ToolCallID: "call-a", ToolCallName: "list_files", ArgumentsDelta: `{"path":"."}`},
		},
		{{TextDelta: "done exploring"}},
	}}
	dispatcher := &recordingDispatcher{}

	events := Run(context.Background(), streamer, dispatcher, nil, "system", nil, "explore")
	drain(t, events)

	// The index-1 fragment arrived first on the wire, but dispatch
	// follows the provider-assigned index, so index 0 runs first.
	require.Equal(t, []string{"list_files", "search_code"}, dispatcher.calls)
}

func TestRun_MalformedToolArgumentsFallBackToEmptyMap(t *testing.T) {
	streamer := &fakeStreamer{turns: [][]StreamDelta{
		{{HasToolCallPart: true, ToolCallIndex: 0, ToolCallID: "call-1", ToolCallName: "list_files", ArgumentsDelta: `{not valid json`}},
		{{TextDelta: "ok"}},
	}}
	dispatcher := &recordingDispatcher{}

	events := Run(context.Background(), streamer, dispatcher, nil, "system", nil, "go")
	got := drain(t, events)

	var toolStart *Event
	for i := range got {
		if got[i].Type == "tool_start" {
			toolStart = &got[i]
			break
		}
	}
	require.NotNil(t, toolStart)
	require.Empty(t, toolStart.Args)
}

func TestRun_DispatchErrorEndsTheLoop(t *testing.T) {
	streamer := &fakeStreamer{turns: [][]StreamDelta{
		{{HasToolCallPart: true, ToolCallIndex: 0, ToolCallID: "call-1", ToolCallName: "read_file", ArgumentsDelta: `{}`}},
	}}
	dispatcher := erroringDispatcher{}

	events := Run(context.Background(), streamer, dispatcher, nil, "system", nil, "go")
	got := drain(t, events)

	require.Equal(t, "error", got[len(got)-1].Type)
}

type erroringDispatcher struct{}

func (erroringDispatcher) Dispatch(_ context.Context, _ string, _ map[string]any) (string, error) {
	return "", context.DeadlineExceeded
}
