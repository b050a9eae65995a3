// Package common holds helpers shared by several services.
//
// It provides a context-bounded call helper for collaborators that may
// ignore cancellation, and a guard that refuses to start a second process
// competing for the same camera and GPIO lines.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
