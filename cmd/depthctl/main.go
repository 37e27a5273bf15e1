// Command depthctl talks to a running depthsim daemon over its Unix socket.
//
// Usage:
//
//	depthctl [-socket path] select <venue> <symbol>
//	depthctl [-socket path] book [-depth n]
//	depthctl [-socket path] simulate -side buy|sell -type market|limit -qty q [-price p] [-delay s]
//	depthctl [-socket path] watch [-depth n]
//	depthctl [-socket path] health
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/caesar-terminal/depthsim/internal/config"
	"github.com/caesar-terminal/depthsim/internal/rpc"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	socketPath := flag.String("socket", cfg.RPC.SocketPath, "daemon socket path")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	client, err := rpc.Dial(*socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "select":
		err = runSelect(ctx, client, args)
	case "book":
		err = runBook(ctx, client, args)
	case "simulate":
		err = runSimulate(ctx, client, args)
	case "watch":
		err = runWatch(ctx, client, args)
	case "health":
		err = runHealth(ctx, client)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: depthctl [-socket path] select|book|simulate|watch|health [flags]")
	flag.PrintDefaults()
}

func runSelect(ctx context.Context, client *rpc.Client, args []string) error {
	if len(args) != 2 {
		return errors.New("expected <venue> <symbol>")
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	v, err := client.Select(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(v)
}

func runBook(ctx context.Context, client *rpc.Client, args []string) error {
	fs := flag.NewFlagSet("book", flag.ExitOnError)
	depth := fs.Int("depth", 10, "levels per side")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	v, err := client.Book(ctx, *depth)
	if err != nil {
		return err
	}
	return printJSON(v)
}

func runSimulate(ctx context.Context, client *rpc.Client, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	side := fs.String("side", "buy", "buy or sell")
	typ := fs.String("type", "market", "market or limit")
	qty := fs.String("qty", "", "order quantity")
	price := fs.String("price", "", "limit price")
	delay := fs.Int("delay", 0, "seconds to wait before simulating")
	fs.Parse(args)

	req := &rpc.SimulateRequest{Side: *side, Type: *typ, DelaySeconds: *delay}

	q, err := decimal.NewFromString(*qty)
	if err != nil {
		return fmt.Errorf("invalid -qty %q: %w", *qty, err)
	}
	req.Quantity = q

	if *price != "" {
		p, err := decimal.NewFromString(*price)
		if err != nil {
			return fmt.Errorf("invalid -price %q: %w", *price, err)
		}
		req.LimitPrice = decimal.NewNullDecimal(p)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(*delay)*time.Second+5*time.Second)
	defer cancel()
	res, err := client.Simulate(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runWatch(ctx context.Context, client *rpc.Client, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	depth := fs.Int("depth", 10, "levels per side")
	fs.Parse(args)

	stream, err := client.Watch(ctx, *depth)
	if err != nil {
		return err
	}
	for {
		v, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := printJSON(v); err != nil {
			return err
		}
	}
}

func runHealth(ctx context.Context, client *rpc.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	st, err := client.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Println(st.String())
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
