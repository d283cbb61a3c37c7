// Package security derives the posture report exposed by
// Engine.SecurityReport. It performs no I/O.
package security
