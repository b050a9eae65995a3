// Package version exposes build metadata of the smart-cane binary.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags
// (-X github.com/oshokin/smart-cane/internal/version.Version=...) and keep
// development defaults for local builds.
package version
