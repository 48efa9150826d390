package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/skala/skip-session/config"
	"github.com/skala/skip-session/internal/bootstrap"
	"github.com/skala/skip-session/internal/observability/notify"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	In     io.Reader

	session *bootstrap.Session
	input   *bufio.Reader
}

func main() {
	cfg, err := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(cfg.Observability.Logging, os.Stderr)
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
		In:     os.Stdin,
	}
	if runErr := dispatch(cmdCtx, os.Args[1], os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", os.Args[1], "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

// dispatch runs one command with a freshly assembled session and pushes the
// session metrics when it finishes.
func dispatch(cmdCtx *commandContext, name string, args []string) error {
	cmd, ok := commands()[name]
	if !ok {
		if err := writef(cmdCtx.Out, "unknown command %q\n\n", name); err != nil {
			return err
		}
		if err := printUsage(cmdCtx.Out); err != nil {
			return err
		}
		return fmt.Errorf("unknown command %q", name)
	}

	session, err := bootstrap.BuildSession(cmdCtx.Ctx, bootstrap.SessionDeps{
		Config:   &cmdCtx.Config,
		Logger:   cmdCtx.Logger,
		Notifier: notify.NewWriter(cmdCtx.Out, "[notice] ", cmdCtx.Logger),
	})
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("close session failed", "error", closeErr)
		}
	}()
	cmdCtx.session = session

	runErr := cmd.run(cmdCtx, args)

	if pushErr := bootstrap.PushMetrics(cmdCtx.Ctx, cmdCtx.Config.Observability.Metrics, session.Registry); pushErr != nil {
		cmdCtx.Logger.Warn("push metrics failed", "error", pushErr)
	}
	return runErr
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Log in with email and password",
			run:         runLogin,
		},
		"logout": {
			name:        "logout",
			description: "End the local session",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Re-validate the stored credential and print the current identity",
			run:         runWhoami,
		},
		"status": {
			name:        "status",
			description: "Print the local session state without contacting the backend",
			run:         runStatus,
		},
		"set-password": {
			name:        "set-password",
			description: "Set the first password of a first-login account",
			run:         runSetPassword,
		},
		"change-password": {
			name:        "change-password",
			description: "Change the password of the current account",
			run:         runChangePassword,
		},
		"navigate": {
			name:        "navigate",
			description: "Run a guarded navigation and print the route finally shown",
			run:         runNavigate,
		},
		"routes": {
			name:        "routes",
			description: "List the application routes",
			run:         runRoutes,
		},
		"request": {
			name:        "request",
			description: "Send an authenticated GET to the primary backend and print the JSON response",
			run:         runRequest,
		},
		"ai-health": {
			name:        "ai-health",
			description: "Check the analysis backend with the stored credential",
			run:         runAIHealth,
		},
		"watch": {
			name:        "watch",
			description: "Follow slot changes made by other processes until interrupted",
			run:         runWatch,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: skip-session <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := cmds[name]
		if err := writef(w, "  %-18s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
