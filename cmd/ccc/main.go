// Package main is a thin command-line front end over the client core:
// it logs in to a command center authority, mirrors its catalog and
// history, and triggers remote executions.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/command-center/client-core/internal/config"
	"github.com/command-center/client-core/internal/services"
	"github.com/command-center/client-core/internal/storage"
	"github.com/command-center/client-core/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ccc %s\n", version.Version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.NewSQLite(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing local store: %v", err)
		}
	}()

	center := services.New(cfg, store)
	defer center.Close()

	ctx := context.Background()

	switch args[0] {
	case "login":
		err = runLogin(ctx, center, cfg, args[1:])
	case "logout":
		center.Logout()
		fmt.Println("Logged out.")
	case "commands":
		err = runCommands(ctx, center)
	case "history":
		err = runHistory(ctx, center)
	case "run":
		err = runExecute(ctx, center, args[1:])
	case "watch":
		err = runWatch(ctx, center)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: ccc [-config FILE] COMMAND")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  login [-server URL] [-user NAME]   authenticate and store the session")
	fmt.Fprintln(os.Stderr, "  logout                             end the session and clear stored state")
	fmt.Fprintln(os.Stderr, "  commands                           list the command catalog")
	fmt.Fprintln(os.Stderr, "  history                            list recent executions")
	fmt.Fprintln(os.Stderr, "  run ID [ARG...]                    execute a command remotely")
	fmt.Fprintln(os.Stderr, "  watch                              stream live state changes")
}

func runLogin(ctx context.Context, center *services.Center, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	server := fs.String("server", "", "server address")
	user := fs.String("user", "admin", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	address := *server
	if address == "" {
		address = cfg.Server.URL
	}
	if address == "" {
		address = center.LastServerURL()
	}
	if address == "" {
		return fmt.Errorf("no server address: pass -server or set server.url in the config")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", *user)
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	password = strings.TrimRight(password, "\r\n")

	session, err := center.Login(ctx, address, *user, password)
	if err != nil {
		return err
	}
	if err := center.LoadSnapshot(ctx); err != nil {
		return err
	}

	fmt.Printf("Logged in to %s (token expires %s)\n", session.ServerURL, session.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

// restoreSession hydrates a persisted session and validates it with a
// snapshot pull.
func restoreSession(ctx context.Context, center *services.Center) error {
	found, err := center.Hydrate()
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("not logged in: run 'ccc login' first")
	}
	if err := center.LoadSnapshot(ctx); err != nil {
		return err
	}
	return nil
}

func runCommands(ctx context.Context, center *services.Center) error {
	if err := restoreSession(ctx, center); err != nil {
		return err
	}

	commands := center.Commands()
	if len(commands) == 0 {
		fmt.Println("No commands defined.")
		return nil
	}
	for _, def := range commands {
		line := fmt.Sprintf("%-36s  %s", def.ID, def.Name)
		if len(def.Args) > 0 {
			line += "  (" + def.Executable + " " + strings.Join(def.Args, " ") + ")"
		} else {
			line += "  (" + def.Executable + ")"
		}
		if !def.AllowArguments {
			line += "  [fixed args]"
		}
		fmt.Println(line)
	}
	return nil
}

func runHistory(ctx context.Context, center *services.Center) error {
	if err := restoreSession(ctx, center); err != nil {
		return err
	}

	history := center.History()
	if len(history) == 0 {
		fmt.Println("No executions recorded.")
		return nil
	}
	for _, entry := range history {
		fmt.Printf("%s  %-7s  %s  %s\n",
			entry.StartedAt.Local().Format("2006-01-02 15:04:05"),
			entry.Status, entry.CommandName, entry.ID)
	}
	return nil
}

func runExecute(ctx context.Context, center *services.Center, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("run requires a command id")
	}
	if err := restoreSession(ctx, center); err != nil {
		return err
	}

	executionID, err := center.Execute(ctx, args[0], args[1:])
	if err != nil {
		return err
	}
	fmt.Printf("Queued execution %s\n", executionID)
	return nil
}

func runWatch(ctx context.Context, center *services.Center) error {
	if err := restoreSession(ctx, center); err != nil {
		return err
	}

	changes := center.Subscribe()
	defer center.Unsubscribe(changes)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	fmt.Println("Watching for changes (Ctrl-C to stop)...")
	for {
		select {
		case <-stop:
			return nil
		case <-changes:
			session := center.Session()
			fmt.Printf("%d commands, %d history entries, session %s, stream %s\n",
				len(center.Commands()), len(center.History()),
				session.Status, center.ChannelState())
		}
	}
}
