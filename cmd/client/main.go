package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/dkeye/Meet/internal/adapters/cli"
	"github.com/dkeye/Meet/internal/adapters/devices"
	sig "github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/app/media"
	"github.com/dkeye/Meet/internal/app/session"
	"github.com/dkeye/Meet/internal/auth"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
)

const usage = `usage: meet <command> [flags]

commands:
  login            sign in and remember the account
  signup           create an account
  logout           forget the stored account
  new              print a fresh meeting id and join it
  join <meeting>   join an existing meeting`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := config.NewFlagSet("meet " + cmd)
	printOnly := fs.Bool("print-only", false, "new: only print the meeting id")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.ApplyLogLevel(cfg)

	store := auth.NewStore(cfg.Auth.StorePath)
	client := auth.NewClient(cfg.Auth.BaseURL, cfg.Auth.Timeout)

	switch cmd {
	case "login":
		err = login(ctx, client, store)
	case "signup":
		err = signup(ctx, client, store)
	case "logout":
		err = store.Clear()
		if err == nil {
			fmt.Println("signed out")
		}
	case "new":
		id := domain.NewMeetingID()
		fmt.Println(id)
		if !*printOnly {
			err = join(ctx, cfg, store, id)
		}
	case "join":
		if fs.NArg() != 1 {
			err = errors.New("usage: meet join <meeting>")
			break
		}
		var id domain.MeetingID
		if id, err = domain.ParseMeetingID(fs.Arg(0)); err == nil {
			err = join(ctx, cfg, store, id)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			fmt.Fprintln(os.Stderr, "not signed in: run `meet login` or `meet signup` first")
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func join(ctx context.Context, cfg *config.Config, store *auth.Store, id domain.MeetingID) error {
	// a missing account surfaces as ErrNotAuthenticated from Join
	user, err := store.User()
	if err != nil && !errors.Is(err, domain.ErrNotAuthenticated) {
		return err
	}

	capturer := devices.NewCapturer(devices.Options{
		VideoWidth:  cfg.Media.VideoWidth,
		VideoHeight: cfg.Media.VideoHeight,
	})
	connector := sig.NewConnector(sig.Config{
		URL:              cfg.Relay.URL,
		HandshakeTimeout: cfg.Relay.HandshakeTimeout,
		PingPeriod:       cfg.Relay.PingPeriod,
		ReadLimit:        cfg.Relay.ReadLimit,
		SendBuffer:       cfg.Session.SendBuffer,
	})
	rc := cfg.Session.Reconnect
	s := session.New(session.Options{
		Connector: connector,
		Media:     media.NewController(capturer),
		Reconnect: session.ReconnectPolicy{
			Enabled:        rc.Enabled,
			MaxAttempts:    rc.MaxAttempts,
			InitialBackoff: rc.InitialBackoff,
			MaxBackoff:     rc.MaxBackoff,
		},
	})

	r := cli.NewRenderer(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
	defer s.Subscribe(r.Update)()

	if err := s.Join(ctx, id, user); err != nil {
		return err
	}
	r.Printf("joined %s as %s, type /help for commands", id, user.Name)

	return cli.Run(ctx, s, os.Stdin, r)
}

func login(ctx context.Context, client *auth.Client, store *auth.Store) error {
	in := bufio.NewReader(os.Stdin)
	email, err := prompt(in, "email: ")
	if err != nil {
		return err
	}
	password, err := promptSecret(in, "password: ")
	if err != nil {
		return err
	}
	creds, err := client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := store.Save(creds); err != nil {
		return err
	}
	fmt.Printf("signed in as %s\n", creds.User.Name)
	return nil
}

func signup(ctx context.Context, client *auth.Client, store *auth.Store) error {
	in := bufio.NewReader(os.Stdin)
	name, err := prompt(in, "name: ")
	if err != nil {
		return err
	}
	email, err := prompt(in, "email: ")
	if err != nil {
		return err
	}
	password, err := promptSecret(in, "password: ")
	if err != nil {
		return err
	}
	creds, err := client.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	if err := store.Save(creds); err != nil {
		return err
	}
	fmt.Printf("account created, signed in as %s\n", creds.User.Name)
	return nil
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret hides input on a terminal and falls back to a plain line otherwise.
func promptSecret(in *bufio.Reader, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, label)
	}
	fmt.Print(label)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
