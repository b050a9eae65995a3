// Package alert delivers emergency notifications to the configured guardians by email.
package alert
