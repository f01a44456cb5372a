package unittest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultSearchTimeout bounds how long a test waits for a search that is expected to finish.
const DefaultSearchTimeout = 30 * time.Second

// RequireCallMustReturnWithinTimeout is a test helper that invokes the given function and fails the test if the invocation
// does not return prior to the given timeout. f runs on another goroutine, so it must not call require or t.FailNow;
// capture results in the enclosing test and assert on them after the helper returns.
func RequireCallMustReturnWithinTimeout(
	t *testing.T,
	f func(),
	timeout time.Duration,
	failureMsg string) {
	t.Helper()
	done := make(chan struct{})

	go func() {
		f()

		close(done)
	}()

	ChannelMustCloseWithinTimeout(
		t,
		done,
		timeout,
		fmt.Sprintf("function did not return on time: %s", failureMsg),
	)
}

// ChannelMustCloseWithinTimeout is a test helper that fails the test if the channel does not close prior to the given timeout.
func ChannelMustCloseWithinTimeout(
	t *testing.T,
	c <-chan struct{},
	timeout time.Duration,
	failureMsg string) {
	t.Helper()
	select {
	case <-c:
		return
	case <-time.After(timeout):
		require.Fail(t, fmt.Sprintf("channel did not close on time: %s", failureMsg))
	}
}
