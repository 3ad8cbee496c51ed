//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed globally via `go install` and are not tracked in go.mod
// since they are development tools, not runtime dependencies.
package tools

// Development tools (install via `go install`):
//
// Air - Live reload for the portal while editing templates and handlers
//   Install: go install github.com/air-verse/air@v1.63.0
//   Version: v1.63.0 (pinned 2025-01-01)
//   Docs: https://github.com/air-verse/air
//   Run: DEV=true AUTH_PROVIDER=dev air --build.cmd "go build -o ./tmp/powra-portal ./cmd/powra-portal" --build.bin ./tmp/powra-portal
//
// mockgen - Regenerates internal/mocks from the port interfaces (see internal/mocks/generate.go)
//   Install: go install go.uber.org/mock/mockgen@v0.6.0
//   Version: v0.6.0 (matches go.uber.org/mock in go.mod)
//   Run: go generate ./internal/mocks
