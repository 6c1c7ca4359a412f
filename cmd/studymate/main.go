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
	"sort"
	"strings"
	"syscall"

	"github.com/dvcrn/studymate-cli/internal/api"
	"github.com/dvcrn/studymate-cli/internal/app"
	"github.com/dvcrn/studymate-cli/internal/auth"
	"github.com/dvcrn/studymate-cli/internal/config"
	"github.com/dvcrn/studymate-cli/internal/logger"
	"github.com/rs/zerolog"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, log: logger.New()}
	code := c.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    zerolog.Logger

	lines *bufio.Reader
}

type command func(ctx context.Context, args []string) error

func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		c.printHelp()
		return 1
	}

	commands := map[string]command{
		"signup":     c.signUpCmd,
		"signin":     c.signInCmd,
		"signout":    c.signOutCmd,
		"whoami":     c.whoamiCmd,
		"status":     c.statusCmd,
		"password":   c.passwordCmd,
		"ask":        c.askCmd,
		"chats":      c.chatsCmd,
		"docs":       c.docsCmd,
		"notes":      c.notesCmd,
		"flashcards": c.flashcardsCmd,
		"quiz":       c.quizCmd,
		"stats":      c.statsCmd,
		"health":     c.healthCmd,
		"serve":      c.serveCmd,
	}

	switch args[0] {
	case "version", "--version", "-v":
		c.versionCmd()
		return 0
	case "help", "--help", "-h":
		c.printHelp()
		return 0
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(c.stderr, "studymate: unknown command %q\n", args[0])
		c.printHelp()
		return 1
	}
	if err := cmd(ctx, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if api.StatusCode(err) == http.StatusUnauthorized && !errors.Is(err, auth.ErrSessionExpired) {
			fmt.Fprintln(c.stderr, "studymate: not signed in, run `studymate signin`")
		}
		fmt.Fprintf(c.stderr, "studymate: %v\n", err)
		return 1
	}
	return 0
}

// flags returns a FlagSet carrying the shared -config flag.
func (c *cli) flags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	configPath := fs.String("config", "", "config file (default $XDG_CONFIG_HOME/studymate/config.yaml)")
	return fs, configPath
}

// open loads configuration and restores the stored session.
func (c *cli) open(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.WithLevel(c.log, cfg.Log.Level)
	return app.Open(ctx, cfg, log, func() {
		fmt.Fprintln(c.stderr, "Your session has expired. Run `studymate signin` to sign in again.")
	})
}

// withApp parses args, opens the App and runs fn with it.
func (c *cli) withApp(ctx context.Context, fs *flag.FlagSet, configPath *string, args []string, fn func(*app.App) error) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := c.open(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(c.stderr, prompt)
	}
	if c.lines == nil {
		c.lines = bufio.NewReader(c.stdin)
	}
	line, err := c.lines.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// dispatch runs the subcommand named by args[0].
func (c *cli) dispatch(ctx context.Context, group string, args []string, subs map[string]command) error {
	if len(args) == 0 {
		return fmt.Errorf("%s: missing subcommand (%s)", group, strings.Join(sortedKeys(subs), ", "))
	}
	sub, ok := subs[args[0]]
	if !ok {
		return fmt.Errorf("%s: unknown subcommand %q (%s)", group, args[0], strings.Join(sortedKeys(subs), ", "))
	}
	return sub(ctx, args[1:])
}

func sortedKeys(m map[string]command) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *cli) printHelp() {
	fmt.Fprintln(c.stderr, `Usage: studymate <command> [flags]

Account:
  signup      Create an account and sign in
  signin      Sign in with email and password
  signout     Forget stored credentials
  whoami      Show the signed-in user
  status      Show session and token expiry
  password    forgot | reset

Study:
  ask         Ask a question about your documents (streams the answer)
  chats       list | messages | rename | delete
  docs        list | upload | delete | download
  notes       generate | list | show | ask | download | delete
  flashcards  Generate flashcards
  quiz        generate | list | show | take | attempts | delete
  stats       Show usage statistics

Other:
  health      Check the backend
  serve       Run the local authenticated gateway
  version     Show version

Every command accepts -config <path>.`)
}
