// Package prompt wraps promptui for the interactive parts of the CLI.
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user presses Ctrl+C.
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err ends an interactive session.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err != nil && IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Input asks for free text, offering defaultValue.
func Input(label, defaultValue string) (string, error) {
	return InputWithValidation(label, defaultValue, nil)
}

// InputWithValidation asks for text accepted by validate.
func InputWithValidation(label, defaultValue string, validate func(string) error) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Default:  defaultValue,
		Validate: validate,
	}
	result, err := p.Run()
	return strings.TrimSpace(result), wrapError(err)
}

// InputPort asks for a TCP port between 1 and 65535.
func InputPort(label string, defaultValue int) (int, error) {
	result, err := InputWithValidation(label, strconv.Itoa(defaultValue), ValidatePort)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(result)
}

// ValidatePort accepts 1-65535.
func ValidatePort(input string) error {
	port, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return errors.New("must be a valid integer")
	}
	if port < 1 || port > 65535 {
		return errors.New("must be a valid port (1-65535)")
	}
	return nil
}

// ValidateNonEmpty rejects blank input.
func ValidateNonEmpty(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("a value is required")
	}
	return nil
}

// Confirm asks a yes/no question. An empty answer picks defaultYes.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	p := promptui.Prompt{
		Label:    fmt.Sprintf("%s [%s]", label, hint),
		Validate: validateYesNo,
	}
	result, err := p.Run()
	if err != nil {
		return false, wrapError(err)
	}
	return parseYesNo(result, defaultYes), nil
}

func validateYesNo(input string) error {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "y", "yes", "n", "no":
		return nil
	}
	return errors.New("answer y or n")
}

func parseYesNo(input string, defaultYes bool) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return defaultYes
}

// SelectOption is one entry of a Select list.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// Select asks the user to pick one option and returns its Value.
func Select(label string, options []SelectOption) (string, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label | white }}",
		Selected: "* {{ .Label | green }}",
	}
	if len(options) > 0 && options[0].Description != "" {
		templates.Details = `
{{ "Description:" | faint }}	{{ .Description }}`
	}

	p := promptui.Select{
		Label:     label,
		Items:     options,
		Templates: templates,
		Size:      len(options),
	}
	i, _, err := p.Run()
	if err != nil {
		return "", wrapError(err)
	}
	return options[i].Value, nil
}
