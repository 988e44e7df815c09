package unittest

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// Logger returns a logger for tests. Set the MERIDIAN_TEST_VERBOSE
// environment variable to see the log output.
func Logger() zerolog.Logger {
	var writer io.Writer = io.Discard
	if os.Getenv("MERIDIAN_TEST_VERBOSE") != "" {
		writer = os.Stderr
	}
	return zerolog.New(writer).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// RequireReturnsBefore requires that the given function returns before the
// duration expires.
func RequireReturnsBefore(t testing.TB, f func(), duration time.Duration, message string) {
	done := make(chan struct{})

	go func() {
		f()
		close(done)
	}()

	select {
	case <-time.After(duration):
		require.Fail(t, "function did not return in time: "+message)
	case <-done:
		return
	}
}

// RequireCloseBefore requires that the given channel closes before the
// duration expires.
func RequireCloseBefore(t testing.TB, c <-chan struct{}, duration time.Duration, message string) {
	select {
	case <-time.After(duration):
		require.Fail(t, "channel did not close in time: "+message)
	case <-c:
		return
	}
}

// RequireNeverClosedWithin requires that the given channel does not close
// within the duration.
func RequireNeverClosedWithin(t testing.TB, c <-chan struct{}, duration time.Duration, message string) {
	select {
	case <-time.After(duration):
		return
	case <-c:
		require.Fail(t, "channel closed unexpectedly: "+message)
	}
}

// RunWithBadgerDB runs the given function with a badger database in a
// temporary directory, which is cleaned up when the test finishes.
func RunWithBadgerDB(t testing.TB, f func(*badger.DB)) {
	dir := t.TempDir()

	opts := badger.
		DefaultOptions(dir).
		WithKeepL0InMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()

	f(db)
}

// RunWithPebbleDB runs the given function with a pebble database in a
// temporary directory, which is cleaned up when the test finishes.
func RunWithPebbleDB(t testing.TB, f func(*pebble.DB)) {
	dir := t.TempDir()

	db, err := pebble.Open(dir, &pebble.Options{})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()

	f(db)
}
