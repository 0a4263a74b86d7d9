package main

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/kristofer/wisp/pkg/client"
	"github.com/kristofer/wisp/pkg/parser"
	"github.com/spf13/cobra"
)

// newEvalCmd builds `wisp eval <form>`, a non-interactive one-shot
// Request for scripting, distinct from the persistent REPL session.
func newEvalCmd(socketFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "eval <form>",
		Short: "send a single form as a Request and print its Response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			socket := *socketFlag
			if socket == "" {
				socket = resolveSocketPath()
			}

			form, err := parser.Parse(strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("wisp eval: parse: %w", err)
			}

			conn, err := net.Dial("unix", socket)
			if err != nil {
				return fmt.Errorf("wisp eval: connect to %s: %w", socket, err)
			}
			defer conn.Close()

			c := client.New(conn, nil)
			defer c.Close()

			resp, err := c.Request(context.Background(), form)
			if err != nil {
				return fmt.Errorf("wisp eval: request: %w", err)
			}
			fmt.Println(parser.Print(resp))
			return nil
		},
	}
}
