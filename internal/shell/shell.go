package shell

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrSyntax is returned when a script does not parse as POSIX shell.
	ErrSyntax = errors.New("invalid shell syntax")
	// ErrMissingCommand is returned when a required command is never invoked.
	ErrMissingCommand = errors.New("required command not invoked")
)

// parse reads script in the POSIX dialect accepted by the recovery /sbin/sh.
func parse(name, script string) (*syntax.File, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))

	file, err := parser.Parse(strings.NewReader(script), name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	return file, nil
}

// Commands returns the distinct literal command names invoked by script, in order of first use.
// Calls whose command word is not a plain literal are skipped.
func Commands(name, script string) ([]string, error) {
	file, err := parse(name, script)
	if err != nil {
		return nil, err
	}

	var commands []string

	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}

		if lit := call.Args[0].Lit(); lit != "" && !slices.Contains(commands, lit) {
			commands = append(commands, lit)
		}

		return true
	})

	return commands, nil
}

// Validate checks that script parses and invokes every required command.
// Nothing is executed.
func Validate(name, script string, required ...string) error {
	commands, err := Commands(name, script)
	if err != nil {
		return err
	}

	for _, command := range required {
		if !slices.Contains(commands, command) {
			return fmt.Errorf("%s: %w: %s", name, ErrMissingCommand, command)
		}
	}

	return nil
}
