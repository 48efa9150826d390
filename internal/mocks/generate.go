// Package mocks provides gomock implementations of the session ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	nav := mocks.NewMockNavigator(ctrl)
//	nav.EXPECT().Navigate(gomock.Any(), "/login").Return(nil)
//
// Hand-written fakes with recorded state live in internal/mocks/auth.
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=navigator_mock.go github.com/skala/skip-session/internal/ports Navigator

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notifier_mock.go github.com/skala/skip-session/internal/ports Notifier

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=key_value_store_mock.go github.com/skala/skip-session/internal/ports KeyValueStore
