package myredis

import (
	"fmt"
	"strings"
)

// NewCmd creates a command, arguments are appended with Arg.
func NewCmd(command string) *Command {
	return &Command{command: command}
}

// Command is one request to a server.
type Command struct {
	command string
	args    []interface{}
	Reply   interface{}
}

// Arg appends arguments.
func (c *Command) Arg(args ...interface{}) *Command {
	c.args = append(c.args, args...)
	return c
}

// Name returns the command name.
func (c *Command) Name() string {
	return c.command
}

// Args returns the command arguments.
func (c *Command) Args() []interface{} {
	return c.args
}

func (c *Command) String() string {
	parts := make([]string, 0, len(c.args)+1)
	parts = append(parts, c.command)
	for _, a := range c.args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}
