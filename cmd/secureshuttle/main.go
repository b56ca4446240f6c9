// Command secureshuttle is the thinnest legitimate external interface
// over the core subsystems in this module: `connect` makes one
// ConnectionManager.Connect call over a real TCP dial, walking
// pkg/connection's state machine and classifying dial errors (it does
// not retry through the reconnection controller), and
// `profile`/`version` are backed by pkg/config's profile catalog. Everything else the full application would need --
// terminal I/O, SSH auth, the desktop shell -- lives outside this
// module and isn't implemented here.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/HautlyS/secureshuttle/pkg/config"
	"github.com/HautlyS/secureshuttle/pkg/connection"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "version", "--version", "-v":
		printVersion()
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "connect":
		return runConnect(args[1:])
	case "profile":
		return runProfile(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 1
	}
}

func printVersion() {
	fmt.Printf("secureshuttle %s (built %s)\n", version, buildTime)
	fmt.Println("features: connection-control, secure-channel, content-store, streaming-room")
}

func printUsage() {
	fmt.Print(`secureshuttle - secure remote-shell and file-sharing core

Usage:
  secureshuttle connect <target> [-p port] [--timeout dur]
  secureshuttle profile {list|add NAME HOST [--user U] [--port P]|remove NAME|show NAME}
  secureshuttle version
  secureshuttle help

Environment:
  SECURESHUTTLE_LOG_LEVEL   tracing verbosity (default "warn")
  SECURESHUTTLE_CONFIG_DIR  config directory, "~" expanded (default "~/.secureshuttle")
`)
}

func configDir() (string, error) {
	dir := os.Getenv("SECURESHUTTLE_CONFIG_DIR")
	if dir == "" {
		dir = "~/.secureshuttle"
	}
	return config.ExpandConfigDir(dir)
}

// runConnect drives pkg/connection's ConnectionManager against a real
// TCP dial, printing state transitions as they broadcast. It's a
// demonstration harness for the connection-control subsystem, not an
// SSH client: establishing a shell session is out of scope here.
func runConnect(args []string) int {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	port := fs.Int("p", 22, "remote port")
	timeout := fs.Duration("timeout", 5*time.Second, "dial timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "connect: missing target")
		return 2
	}
	target := fs.Arg(0)

	cfg := connection.DefaultConnectionConfig(target, uint16(*port))
	cfg.Timeout = *timeout
	mgr := connection.NewConnectionManager(cfg)

	events := mgr.SubscribeStateChanges()
	go func() {
		for ev := range events {
			fmt.Fprintf(os.Stderr, "state: %s -> %s\n", ev.Old, ev.New)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := mgr.Connect(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		return 1
	}
	defer conn.Close()

	fmt.Printf("connected to %s\n", conn.RemoteAddr())
	return 0
}

func runProfile(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "profile: missing subcommand")
		return 2
	}

	dir, err := configDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cat, err := config.LoadProfileCatalog(filepath.Join(dir, "profiles.json"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	switch args[0] {
	case "list":
		for _, p := range cat.List() {
			fmt.Printf("%-16s %s@%s:%d\n", p.Name, p.Username, p.Host, p.Port)
		}
		return 0

	case "add":
		fs := flag.NewFlagSet("profile add", flag.ContinueOnError)
		user := fs.String("user", "", "username")
		port := fs.Int("port", 22, "port")
		rest := args[1:]
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "profile add: usage: profile add NAME HOST [--user U] [--port P]")
			return 2
		}
		name, host := fs.Arg(0), fs.Arg(1)
		p := config.NewProfile(name, host, *user)
		p.Port = uint16(*port)
		if err := cat.Add(p); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	case "remove":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "profile remove: usage: profile remove NAME")
			return 2
		}
		if err := cat.Remove(args[1]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	case "show":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "profile show: usage: profile show NAME")
			return 2
		}
		p, err := cat.Get(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("name:     %s\nhost:     %s\nuser:     %s\nport:     %d\nuses:     %d\n",
			p.Name, p.Host, p.Username, p.Port, p.UseCount)
		return 0

	default:
		fmt.Fprintf(os.Stderr, "profile: unknown subcommand %s\n", args[0])
		return 2
	}
}
