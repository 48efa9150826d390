package ports_test

import (
	"testing"

	mocks "github.com/skala/skip-session/internal/mocks/auth"
	"github.com/skala/skip-session/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.AuthAPI = (*mocks.FakeAuthAPI)(nil)
	var _ ports.KeyValueStore = (*mocks.MemoryKeyValueStore)(nil)
	var _ ports.Navigator = (*mocks.RecordingNavigator)(nil)
	var _ ports.Notifier = (*mocks.RecordingNotifier)(nil)
}
