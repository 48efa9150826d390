package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/skala/skip-session/internal/bootstrap"
	domainauth "github.com/skala/skip-session/internal/domain/auth"
	apperrors "github.com/skala/skip-session/internal/errors"
)

const defaultCommandTimeout = 2 * time.Minute

type loginOptions struct {
	Email    string
	Password string
}

type setPasswordOptions struct {
	Password string
}

type changePasswordOptions struct {
	Current string
	New     string
}

func runLogin(cmdCtx *commandContext, args []string) error {
	opts, err := parseLoginFlags(cmdCtx, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	store := cmdCtx.session.Store
	if !store.Login(ctx, opts.Email, opts.Password) {
		if err := writef(cmdCtx.Out, "Login failed: %s (%d attempts remaining)\n",
			store.LastError(), store.RemainingAttempts()); err != nil {
			return fmt.Errorf("print login failure: %w", err)
		}
		return errors.New("login failed")
	}

	if err := writef(cmdCtx.Out, "Logged in as %s <%s> (%s)\n",
		store.UserName(), store.UserEmail(), store.UserRole()); err != nil {
		return fmt.Errorf("print login result: %w", err)
	}

	// Land on the home route so a first-login account is redirected and told
	// to change its password.
	route, err := cmdCtx.session.Router.Push(ctx, "/")
	if err != nil {
		return fmt.Errorf("navigate home: %w", err)
	}
	return writef(cmdCtx.Out, "Now at %s (%s)\n", route.Title, route.Path)
}

func runLogout(cmdCtx *commandContext, _ []string) error {
	if err := cmdCtx.session.Store.Logout(cmdCtx.Ctx); err != nil {
		return err
	}
	return writeln(cmdCtx.Out, "Logged out")
}

func runWhoami(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	store := cmdCtx.session.Store
	store.CheckAuth(ctx)

	identity := store.Identity()
	if !store.IsAuthenticated() || identity == nil {
		return writeln(cmdCtx.Out, "Not logged in")
	}

	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"ID", fmt.Sprint(identity.ID)},
		{"Name", identity.Name},
		{"Email", identity.Email},
		{"Role", identity.Role},
		{"First login", fmt.Sprint(identity.FirstLogin)},
	}
	for _, row := range rows {
		if err := writef(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("write identity row: %w", err)
		}
	}
	return tw.Flush()
}

func runStatus(cmdCtx *commandContext, _ []string) error {
	_, hasCredential, err := cmdCtx.session.Storage.Get(cmdCtx.Ctx, cmdCtx.Config.Storage.CredentialKey)
	if err != nil {
		return fmt.Errorf("read durable slot: %w", err)
	}

	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "Field\tValue"); err != nil {
		return fmt.Errorf("write status header: %w", err)
	}
	rows := [][2]string{
		{"Storage", string(cmdCtx.Config.Storage.Mode)},
		{"Credential stored", fmt.Sprint(hasCredential)},
		{"API", cmdCtx.Config.API.BaseURL},
		{"AI", cmdCtx.Config.AI.BaseURL},
	}
	for _, row := range rows {
		if err := writef(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("write status row: %w", err)
		}
	}
	return tw.Flush()
}

func runSetPassword(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("set-password", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Out)

	var opts setPasswordOptions
	fs.StringVar(&opts.Password, "password", "", "New password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.Password == "" {
		p, err := prompt(cmdCtx, "New password: ")
		if err != nil {
			return err
		}
		opts.Password = p
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	store := cmdCtx.session.Store
	store.CheckAuth(ctx)
	if !store.SetPassword(ctx, opts.Password) {
		if err := writef(cmdCtx.Out, "Set password failed: %s\n", store.LastError()); err != nil {
			return fmt.Errorf("print set-password failure: %w", err)
		}
		return errors.New("set password failed")
	}
	return writeln(cmdCtx.Out, "Password set")
}

func runChangePassword(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Out)

	var opts changePasswordOptions
	fs.StringVar(&opts.Current, "current", "", "Current password (prompted when empty)")
	fs.StringVar(&opts.New, "new", "", "New password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var err error
	if opts.Current == "" {
		if opts.Current, err = prompt(cmdCtx, "Current password: "); err != nil {
			return err
		}
	}
	if opts.New == "" {
		if opts.New, err = prompt(cmdCtx, "New password: "); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	store := cmdCtx.session.Store
	if !store.ChangePassword(ctx, opts.Current, opts.New) {
		if err := writef(cmdCtx.Out, "Change password failed: %s\n", store.LastError()); err != nil {
			return fmt.Errorf("print change-password failure: %w", err)
		}
		return errors.New("change password failed")
	}
	return writeln(cmdCtx.Out, "Password changed")
}

func runNavigate(cmdCtx *commandContext, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: skip-session navigate <path>")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	route, err := cmdCtx.session.Router.Push(ctx, args[0])
	if err != nil {
		return err
	}
	return writef(cmdCtx.Out, "%s\t%s\t%s\n", route.Name, route.Path, route.Title)
}

func runRoutes(cmdCtx *commandContext, _ []string) error {
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "NAME\tPATH\tAUTH\tTITLE"); err != nil {
		return fmt.Errorf("write routes header: %w", err)
	}
	for _, r := range cmdCtx.session.Router.Table().Routes() {
		if err := writef(tw, "%s\t%s\t%t\t%s\n", r.Name, r.Path, r.RequiresAuth, r.Title); err != nil {
			return fmt.Errorf("write route row: %w", err)
		}
	}
	return tw.Flush()
}

func runRequest(cmdCtx *commandContext, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: skip-session request <path>")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	var body json.RawMessage
	if err := cmdCtx.session.API.Do(ctx, http.MethodGet, args[0], nil, &body); err != nil {
		if cur, ok := cmdCtx.session.Router.Current(); ok && apperrors.IsUnauthorized(err) {
			if writeErr := writef(cmdCtx.Out, "%s. Redirected to %s\n", domainauth.MsgSessionExpired, cur.Path); writeErr != nil {
				return errors.Join(err, writeErr)
			}
		}
		return err
	}
	return printJSON(cmdCtx.Out, body)
}

func runAIHealth(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	health, err := cmdCtx.session.AI.Health(ctx)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Out, "AI backend %s (version %s)\n", health.Status, health.Version)
}

func runWatch(cmdCtx *commandContext, _ []string) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := cmdCtx.session.Store
	store.CheckAuth(ctx)
	if err := writef(cmdCtx.Out, "Watching session (authenticated: %t)\n", store.IsAuthenticated()); err != nil {
		return fmt.Errorf("print watch banner: %w", err)
	}

	err := cmdCtx.session.Watch(ctx)
	if errors.Is(err, bootstrap.ErrWatchUnsupported) {
		return fmt.Errorf("%w (storage mode %s)", err, cmdCtx.Config.Storage.Mode)
	}
	return err
}

func parseLoginFlags(cmdCtx *commandContext, args []string) (loginOptions, error) {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Out)

	var opts loginOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Password (prompted when empty)")

	if err := fs.Parse(args); err != nil {
		return loginOptions{}, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" {
		return loginOptions{}, errors.New("--email is required")
	}
	if opts.Password == "" {
		p, err := prompt(cmdCtx, "Password: ")
		if err != nil {
			return loginOptions{}, err
		}
		opts.Password = p
	}
	return opts, nil
}

func prompt(cmdCtx *commandContext, label string) (string, error) {
	if err := writef(cmdCtx.Out, "%s", label); err != nil {
		return "", fmt.Errorf("print prompt: %w", err)
	}
	if cmdCtx.In == nil {
		return "", errors.New("no input available")
	}
	if cmdCtx.input == nil {
		cmdCtx.input = bufio.NewReader(cmdCtx.In)
	}
	line, err := cmdCtx.input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		return writeln(w, "(empty response)")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
