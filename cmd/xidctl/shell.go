package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sushant-115/xidledger/core/transaction"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("create"),
	readline.PcItem("begin"),
	readline.PcItem("commit"),
	readline.PcItem("abort"),
	readline.PcItem("status"),
	readline.PcItem("dump"),
	readline.PcItem("stats"),
	readline.PcItem("verify"),
	readline.PcItem("backup"),
	readline.PcItem("bench"),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

// shell reads commands until exit or EOF. Mistakes are reported and the
// session continues; a fatal ledger error ends it.
func (c *cli) shell(ctx context.Context, stdin io.ReadCloser) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "xidledger> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           stdin,
		Stdout:          c.out,
	})
	if err != nil {
		return fmt.Errorf("starting shell: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(c.out, "xidledger shell on %s. Type 'help' for commands, 'exit' or 'quit' to leave.\n",
		transaction.LedgerPath(c.cfg.Ledger.Path))
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch strings.ToLower(args[0]) {
		case "exit", "quit":
			return nil
		case "shell":
			continue
		}

		if err := c.processCommand(ctx, args); err != nil {
			if transaction.IsFatal(err) {
				return err
			}
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}
