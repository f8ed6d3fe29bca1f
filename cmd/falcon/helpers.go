package main

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/falconwiki/falcon/internal/reactloop"
)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// noopCompleter and noopStreamer stand in for the external LLM
// provider, which spec §1 explicitly places out of scope. They let
// the HTTP boundary run end to end without a live API key; a real
// deployment swaps these for a client
// satisfying the same two narrow interfaces.
type noopCompleter struct{}

func (noopCompleter) Complete(_ context.Context, _ string, _ []reactloop.Message, question string) (string, error) {
	return "No language model is configured; echoing the question: " + question, nil
}

type noopStreamer struct{}

func (noopStreamer) Stream(_ context.Context, _ []reactloop.Message, _ []reactloop.ToolSchema) (<-chan reactloop.StreamDelta, <-chan error) {
	deltas := make(chan reactloop.StreamDelta)
	errs := make(chan error)
	close(deltas)
	close(errs)
	return deltas, errs
}
