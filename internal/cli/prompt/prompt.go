// Package prompt wraps promptui for the interactive parts of the chatd
// CLI: password entry and destructive-action confirmation.
package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// ErrPasswordMismatch indicates the confirmation did not match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// IsAborted returns true if the error indicates the user aborted.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

// wrapError converts promptui interrupt/abort errors to ErrAborted for
// consistent handling.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Password prompts for a masked password with minimum length validation.
func Password(label string, minLength int) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("password must be at least %d characters", minLength)
			}
			return nil
		},
	}

	result, err := p.Run()
	return result, wrapError(err)
}

// NewPassword prompts for a password and its confirmation. Returns
// ErrPasswordMismatch if the two entries differ.
func NewPassword(minLength int) (string, error) {
	password, err := Password("Password", minLength)
	if err != nil {
		return "", err
	}

	confirm := promptui.Prompt{Label: "Confirm password", Mask: '*'}
	confirmed, err := confirm.Run()
	if err != nil {
		return "", wrapError(err)
	}

	if password != confirmed {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

// Confirm asks a yes/no question, defaulting to no. Returns false on
// abort.
func Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	_, err := p.Run()
	if err != nil {
		// promptui reports "no" as an abort error.
		if IsAborted(err) || errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
