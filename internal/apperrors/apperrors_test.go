package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	cases := []struct {
		kind      Kind
		retryable bool
	}{
		{Acquisition, true},
		{SourceHost, true},
		{Agent, true},
		{AgentTimeoutKind, true},
		{InvalidInput, false},
		{NotFound, false},
		{Conflict, false},
		{Fatal, false},
		{Execution, false},
	}
	for _, c := range cases {
		err := New(c.kind, "boom").(*Error)
		require.Equalf(t, c.retryable, err.Retryable(), "kind %s", c.kind)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind   Kind
		status int
	}{
		{InvalidInput, 400},
		{NotFound, 404},
		{Conflict, 409},
		{Fatal, 500},
		{Execution, 500},
		{Agent, 500},
	}
	for _, c := range cases {
		err := New(c.kind, "boom").(*Error)
		require.Equalf(t, c.status, err.HTTPStatus(), "kind %s", c.kind)
	}
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(Agent, "agent call failed", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "root cause")
	require.Contains(t, err.Error(), "agent call failed")
}

func TestAs_ExtractsTypedError(t *testing.T) {
	err := New(NotFound, "wiki not found")
	e, ok := As(err)
	require.True(t, ok)
	require.Equal(t, NotFound, e.Kind)

	_, ok = As(errors.New("plain error"))
	require.False(t, ok)
}
