package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/haukened/adnsq/internal/dns/common/log"
	"github.com/haukened/adnsq/internal/dns/config"
	"github.com/haukened/adnsq/internal/dns/dispatcher"
	"github.com/haukened/adnsq/internal/dns/domain"
)

const appName = "adnsq"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "%s: configuration error: %v\n", appName, err)
		return 1
	}

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("s", cfg.Nameserver, "recursive nameserver IP address")
	port := fs.Int("p", cfg.Port, "nameserver UDP port")
	workers := fs.Int("w", cfg.Workers, "number of encode-worker goroutines (0 = runtime.NumCPU())")
	timeoutMS := fs.Int("t", cfg.TimeoutMS, "per-query timeout in milliseconds")
	wantAAAA := fs.Bool("6", false, "query AAAA instead of A")
	verbosity := countFlag(fs, "v", "raise log verbosity (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	// Each -v raises the configured level one step, up to debug.
	levels := []string{"error", "warn", "info", "debug"}
	logLevel := cfg.LogLevel
	for i, l := range levels {
		if l == logLevel {
			logLevel = levels[min(i+*verbosity, len(levels)-1)]
			break
		}
	}
	if err := log.Configure("prod", logLevel); err != nil {
		fmt.Fprintf(stderr, "%s: logging configuration error: %v\n", appName, err)
		return 1
	}

	names := fs.Args()
	if len(names) == 0 {
		fmt.Fprintf(stderr, "usage: %s [flags] hostname [hostname...]\n", appName)
		fs.PrintDefaults()
		return 1
	}

	nameserver, err := netip.ParseAddrPort(net.JoinHostPort(*server, strconv.Itoa(*port)))
	if err != nil {
		fmt.Fprintf(stderr, "%s: invalid nameserver %q:%d: %v\n", appName, *server, *port, err)
		return 1
	}

	client, err := dispatcher.New(nameserver,
		dispatcher.WithWorkers(*workers),
		dispatcher.WithTimeout(time.Duration(*timeoutMS)*time.Millisecond),
	)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := client.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "%s: start: %v\n", appName, err)
		return 1
	}
	defer client.Stop()

	qtype := domain.RRTypeA
	if *wantAAAA {
		qtype = domain.RRTypeAAAA
	}

	var wg sync.WaitGroup
	wg.Add(len(names))
	for _, name := range names {
		name := name
		client.AsyncQuery(name, qtype, func(res domain.Result, name string, qtype domain.RRType) {
			defer wg.Done()
			printResult(stdout, name, qtype, res)
		})
	}
	wg.Wait()

	return 0
}

func printResult(w *os.File, name string, qtype domain.RRType, res domain.Result) {
	switch res.Outcome {
	case domain.Success:
		for _, c := range res.CNAMEs {
			fmt.Fprintf(w, "%s CNAME %s\n", c.Owner, c.Canonical)
		}
		for _, a := range res.Addrs {
			fmt.Fprintf(w, "%s %s %s\n", a.Owner, qtype, a.Addr)
		}
		if len(res.Addrs) == 0 && len(res.CNAMEs) == 0 {
			fmt.Fprintf(w, "%s %s %s\n", name, qtype, res.RCode)
		}
	case domain.Timeout:
		fmt.Fprintf(w, "%s %s TIMEOUT\n", name, qtype)
	case domain.Error:
		fmt.Fprintf(w, "%s %s ERROR: %v\n", name, qtype, res.Err)
	}
}

// countFlag registers a repeatable boolean flag (like -v -v) and
// returns a pointer to the number of times it was seen.
func countFlag(fs *flag.FlagSet, name, usage string) *int {
	n := new(int)
	fs.Func(name, usage, func(string) error {
		*n++
		return nil
	})
	return n
}
