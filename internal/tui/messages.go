// Package tui provides Bubble Tea models for the interactive TUI.
package tui

import "github.com/h0rv/brickhunt/internal/domain"

// SessionSelectedMsg is emitted when the user picks a recent session.
type SessionSelectedMsg struct {
	Summary domain.SessionSummary
}

// NewSessionMsg is emitted when the user asks for a new session of a set.
type NewSessionMsg struct {
	SetNum string
}

// ShowSetPromptMsg is emitted when the user wants to type a set number.
type ShowSetPromptMsg struct{}

// CancelPromptMsg is emitted when the set prompt is dismissed.
type CancelPromptMsg struct{}

// ErrorMsg is emitted when an error occurs.
type ErrorMsg struct {
	Err error
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}
