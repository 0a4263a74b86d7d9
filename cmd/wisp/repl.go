package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/kristofer/wisp/pkg/client"
	"github.com/kristofer/wisp/pkg/parser"
	"github.com/kristofer/wisp/pkg/value"
)

// runREPL dials socket and runs an interactive read-eval-print loop over
// it, one pkg/client.Client.Request per complete form. Grounded on
// cmd/smog/main.go's runREPL (persistent-session, multi-line buffering,
// ":quit"/":exit"/":help" commands) with the completion check replaced:
// smog buffered until a trailing '.', this syntax instead buffers until
// parser.Parse stops reporting an incomplete expression, since forms here
// are balanced by parens rather than terminated by a period.
func runREPL(socket string) error {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return fmt.Errorf("wisp: connect to %s: %w", socket, err)
	}
	defer conn.Close()

	c := client.New(conn, nil)
	defer c.Close()

	fmt.Println("wisp REPL")
	fmt.Println("Type :help for help, :quit or :exit to exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder

	for {
		if buf.Len() == 0 {
			fmt.Print("wisp> ")
		} else {
			fmt.Print("....> ")
		}

		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if buf.Len() == 0 {
			switch strings.TrimSpace(line) {
			case ":quit", ":exit":
				fmt.Println("bye")
				return nil
			case ":help":
				printREPLHelp()
				continue
			case "":
				continue
			}
		}

		buf.WriteString(line)
		buf.WriteString("\n")

		form, err := parser.Parse(buf.String())
		if err != nil {
			if parser.ErrIncomplete(err) {
				continue
			}
			fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
			buf.Reset()
			continue
		}
		buf.Reset()

		evalAndPrint(c, form)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("wisp: read input: %w", err)
	}
	return nil
}

func evalAndPrint(c *client.Client, form value.Val) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp, err := c.Request(ctx, form)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Println(parser.Print(resp))
}

func printREPLHelp() {
	fmt.Println("wisp REPL help")
	fmt.Println()
	fmt.Println("  :help     show this help message")
	fmt.Println("  :quit     exit the REPL")
	fmt.Println("  :exit     exit the REPL")
	fmt.Println()
	fmt.Println("Enter a form and press Enter; an unbalanced form prompts")
	fmt.Println("for continuation until it closes.")
}
