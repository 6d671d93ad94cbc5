// Package mocks provides mock implementations for testing the genrelay job tracker.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/stokehq/genrelay/internal/core JobRepository

// Generate mock for ResultSink interface from internal/core package.
// This creates MockResultSink with methods for Deliver, Heartbeat, ReportFailure.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=result_sink_mock.go github.com/stokehq/genrelay/internal/core ResultSink

// Generate mock for ProviderClient interface from internal/core package.
// This creates MockProviderClient with methods for Submit, FetchStatus.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=provider_client_mock.go github.com/stokehq/genrelay/internal/core ProviderClient

// Generate mock for ThrottleCache interface from internal/core package.
// This creates MockThrottleCache with the Allow method.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=throttle_cache_mock.go github.com/stokehq/genrelay/internal/core ThrottleCache
