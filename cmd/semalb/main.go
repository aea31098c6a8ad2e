// Command semalb runs the load balancer: a TCP front door that proxies
// client connections to a pool of backend workers, selected by a pluggable
// policy and short-circuited by a semantic response cache (spec.md §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lordbasex/semalb/internal/balancer"
	"github.com/lordbasex/semalb/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run implements the CLI contract in spec.md §6: "<program> [r|c]", exit
// codes 0 clean shutdown / 2 CLI misuse / 1 fatal bind failure.
func run(args []string) int {
	algorithm, flagArgs, err := splitAlgorithmArg(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: semalb [r|c] [flags]")
		return 2
	}

	fs := flag.NewFlagSet("semalb", flag.ContinueOnError)
	cfg, err := config.LoadFromFlags(fs, flagArgs)
	if err != nil {
		return 2
	}

	b, err := balancer.New(cfg, algorithm)
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: semalb [r|c] [flags]:", err)
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("[main] starting semalb (policy=%s)", b.Policy.Name())
	if err := b.Start(ctx); err != nil {
		log.Printf("[main] fatal: %v", err)
		return 1
	}

	log.Printf("[main] shutdown complete")
	return 0
}

// splitAlgorithmArg pulls the optional positional "r"/"c" argument off the
// front of args, leaving the rest for the flag set. Any other bare
// positional token is a CLI misuse per spec.md §6.
func splitAlgorithmArg(args []string) (algorithm string, rest []string, err error) {
	if len(args) == 0 {
		return "", args, nil
	}
	first := args[0]
	if len(first) > 0 && first[0] == '-' {
		return "", args, nil
	}
	switch first {
	case "r", "c":
		return first, args[1:], nil
	default:
		return "", nil, fmt.Errorf("unknown algorithm type: %q", first)
	}
}
