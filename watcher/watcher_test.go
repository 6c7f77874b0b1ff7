package watcher

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tachyon-mail/tachyon/async"
	"github.com/tachyon-mail/tachyon/events"
)

func TestWatcher(t *testing.T) {
	watcher := New[events.Event](
		async.NoopPanicHandler{},
		events.MailboxCreated{},
		events.MailboxDeleted{},
	)

	// The watcher is watching the correct types.
	require.True(t, watcher.IsWatching(events.MailboxCreated{}))
	require.True(t, watcher.IsWatching(events.MailboxDeleted{}))

	// The watcher is not watching the incorrect types.
	require.False(t, watcher.IsWatching(events.MessageAdded{}))
	require.False(t, watcher.IsWatching(events.FlagsUpdated{}))

	// Get a channel to read from the watcher.
	resCh := watcher.GetChannel()

	// Send some events to the watcher.
	require.True(t, watcher.Send(events.MailboxCreated{MailboxID: 1}))
	require.True(t, watcher.Send(events.MailboxDeleted{MailboxID: 1}))

	// Check we can read the events off the channel.
	require.Equal(t, events.MailboxCreated{MailboxID: 1}, <-resCh)
	require.Equal(t, events.MailboxDeleted{MailboxID: 1}, <-resCh)

	// Close the watcher.
	watcher.Close()

	// Sending more events after the watcher is closed should return false.
	require.False(t, watcher.Send(events.MailboxCreated{MailboxID: 2}))
}

func TestWatcherWithoutTypesWatchesEverything(t *testing.T) {
	watcher := New[events.Event](async.NoopPanicHandler{})
	defer watcher.Close()

	require.True(t, watcher.IsWatching(events.MailboxCreated{}))
	require.True(t, watcher.IsWatching(events.MessagesExpunged{}))
}
