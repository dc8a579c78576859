package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
)

const usage = `usage: faceauth [-config file] <command> [flags]

commands:
  login      log in with your face, falling back to email and password
  register   create an account and log in
  logout     forget the stored session
  me         show the logged in user
  status     show whether a session is stored
  fake-api   serve an in-memory API for local testing
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "faceauth: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	global := flag.NewFlagSet("faceauth", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configFile := global.String("config", os.Getenv("FACEAUTH_CONFIG"), "optional YAML config file")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, *configFile, stdin, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	command, rest := global.Arg(0), global.Args()[1:]
	switch command {
	case "login":
		displayAppname(stdout, a.cfg.GetAppName())
		return a.login(ctx, rest)
	case "register":
		displayAppname(stdout, a.cfg.GetAppName())
		return a.register(ctx, rest)
	case "logout":
		return a.logout(rest)
	case "me":
		return a.me(ctx, rest)
	case "status":
		return a.status(rest)
	case "fake-api":
		displayAppname(stdout, a.cfg.GetAppName())
		return a.fakeAPI(ctx, rest)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, myFigure.String())
}
