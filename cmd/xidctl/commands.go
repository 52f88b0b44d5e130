package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sushant-115/xidledger/config"
	"github.com/sushant-115/xidledger/core/transaction"
)

// cli holds what every command needs. The ledger is opened on first use and
// stays open until close, so a shell session works on a single Store.
type cli struct {
	cfg    config.Config
	log    *zap.Logger
	tracer trace.Tracer
	meter  metric.Meter
	out    io.Writer
	store  *transaction.Store
}

// usageError is a mistake on the command line, as opposed to a ledger failure.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, a ...any) error {
	return &usageError{msg: fmt.Sprintf(format, a...)}
}

func (c *cli) storeOptions() []transaction.Option {
	return []transaction.Option{
		transaction.WithLogger(c.log),
		transaction.WithMeter(c.meter),
	}
}

// ledger returns the open store, opening (or creating, if configured) it first.
func (c *cli) ledger() (*transaction.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	s, err := transaction.Open(c.cfg.Ledger.Path, c.storeOptions()...)
	if errors.Is(err, transaction.ErrLedgerNotFound) && c.cfg.Ledger.CreateIfMissing {
		s, err = transaction.Create(c.cfg.Ledger.Path, c.storeOptions()...)
	}
	if err != nil {
		return nil, err
	}
	c.store = s
	return s, nil
}

func (c *cli) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

// processCommand runs one command inside its own span.
func (c *cli) processCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usagef("no command provided")
	}
	command := strings.ToLower(args[0])

	ctx, span := c.tracer.Start(ctx, "xidctl."+command,
		trace.WithAttributes(attribute.String("ledger", c.cfg.Ledger.Path)))
	defer span.End()

	err := c.dispatch(ctx, command, args[1:])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *cli) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "create":
		if c.store != nil {
			return usagef("a ledger is already open")
		}
		s, err := transaction.Create(c.cfg.Ledger.Path, c.storeOptions()...)
		if err != nil {
			return err
		}
		c.store = s
		fmt.Fprintf(c.out, "created %s\n", s.Path())
		return nil

	case "begin":
		s, err := c.ledger()
		if err != nil {
			return err
		}
		xid, err := s.Begin()
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, xid)
		return nil

	case "commit", "abort":
		if len(args) != 1 {
			return usagef("%s requires exactly one xid", command)
		}
		xid, err := parseXID(args[0])
		if err != nil {
			return err
		}
		s, err := c.ledger()
		if err != nil {
			return err
		}
		if command == "commit" {
			err = s.Commit(xid)
		} else {
			err = s.Abort(xid)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, "ok")
		return nil

	case "status":
		if len(args) == 0 {
			return usagef("status requires at least one xid")
		}
		s, err := c.ledger()
		if err != nil {
			return err
		}
		for _, arg := range args {
			xid, err := parseXID(arg)
			if err != nil {
				return err
			}
			st, err := s.State(xid)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%d %s\n", xid, st)
		}
		return nil

	case "dump":
		s, err := c.ledger()
		if err != nil {
			return err
		}
		return s.Scan(func(xid transaction.XID, st transaction.TransactionState) bool {
			fmt.Fprintf(c.out, "%d %s\n", xid, st)
			return true
		})

	case "stats":
		s, err := c.ledger()
		if err != nil {
			return err
		}
		st, err := s.Stats()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "counter=%d active=%d committed=%d aborted=%d\n",
			st.Counter, st.Active, st.Committed, st.Aborted)
		return nil

	case "verify":
		counter, err := transaction.Verify(c.cfg.Ledger.Path)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "ok counter=%d\n", counter)
		return nil

	case "repair":
		if c.store != nil {
			return usagef("repair needs exclusive access; it cannot run on an open ledger")
		}
		report, err := transaction.Repair(c.cfg.Ledger.Path, transaction.WithLogger(c.log))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "counter=%d truncated_bytes=%d\n", report.Counter, report.TruncatedBytes)
		return nil

	case "backup":
		if len(args) != 1 {
			return usagef("backup requires a destination base path")
		}
		s, err := c.ledger()
		if err != nil {
			return err
		}
		if err := s.Backup(ctx, args[0], c.cfg.Ledger.BackupBytesPerSec); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "backed up to %s\n", transaction.LedgerPath(args[0]))
		return nil

	case "bench":
		return c.bench(ctx, args)

	case "help":
		printHelp(c.out)
		return nil

	default:
		return usagef("unknown command %q; type 'help' for a list of commands", command)
	}
}

func parseXID(s string) (transaction.XID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, usagef("invalid xid %q", s)
	}
	return transaction.XID(v), nil
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  create                 create a new ledger")
	fmt.Fprintln(w, "  begin                  allocate a transaction id")
	fmt.Fprintln(w, "  commit <xid>           mark a transaction committed")
	fmt.Fprintln(w, "  abort <xid>            mark a transaction aborted")
	fmt.Fprintln(w, "  status <xid>...        print transaction states")
	fmt.Fprintln(w, "  dump                   print every transaction state")
	fmt.Fprintln(w, "  stats                  count transactions by state")
	fmt.Fprintln(w, "  verify                 check the ledger file without opening it")
	fmt.Fprintln(w, "  repair                 cut records the header does not account for")
	fmt.Fprintln(w, "  backup <dst>           copy the ledger to <dst>.xid")
	fmt.Fprintln(w, "  bench [flags]          run concurrent begin/commit load")
	fmt.Fprintln(w, "  shell                  interactive mode (default)")
	fmt.Fprintln(w, "  help")
	fmt.Fprintln(w, "  exit / quit            leave the shell")
}
