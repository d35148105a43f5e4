// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/kchat/internal/config"
	"github.com/jeranaias/kchat/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "sessions")
	Action  string // Action being performed (e.g., "export")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a CommandError.
func NewCommandError(command, action, reason string, err error) *CommandError {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// UsageError reports invalid arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var usage *UsageError
	var verrs config.ValidateErrors
	var verr config.ValidationError
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &verrs), errors.As(err, &verr):
		return ExitConfigError
	case errors.Is(err, storage.ErrNotFound):
		return ExitNotFoundError
	default:
		return ExitGeneralError
	}
}
