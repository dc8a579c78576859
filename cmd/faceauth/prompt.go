package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/dignilife/faceauth-client/authflow"
	"github.com/dignilife/faceauth-client/capture"
)

// prompter reads answers line by line. Passwords are read without echo when
// stdin is a terminal.
type prompter struct {
	in  *bufio.Reader
	fd  int
	tty bool
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

func (p *prompter) println(w io.Writer, a ...interface{}) {
	fmt.Fprintln(w, a...)
}

// ask prints question and returns the trimmed answer, or fallback when the
// answer is blank.
func (p *prompter) ask(question, fallback string) (string, error) {
	if fallback != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, fallback)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}

	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.Wrap(err, "read answer")
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		return fallback, nil
	}
	return answer, nil
}

func (p *prompter) askPassword(question string) (string, error) {
	if !p.tty {
		return p.ask(question, "")
	}

	fmt.Fprintf(p.out, "%s: ", question)
	password, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", errors.Wrap(err, "read password")
	}
	return string(password), nil
}

// yes asks a yes/no question. Blank means yes.
func (p *prompter) yes(question string) (bool, error) {
	answer, err := p.ask(question+" [Y/n]", "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// profile asks for the registration fields, offering the current draft as defaults
func (p *prompter) profile(draft authflow.ProfileDraft) (authflow.ProfileDraft, error) {
	var err error
	if draft.Email, err = p.ask("Email *", draft.Email); err != nil {
		return draft, err
	}
	if draft.FullName, err = p.ask("Full name *", draft.FullName); err != nil {
		return draft, err
	}
	if draft.PhoneNumber, err = p.ask("Phone number", draft.PhoneNumber); err != nil {
		return draft, err
	}
	if draft.Password == "" {
		if draft.Password, err = p.askPassword("Password (optional, for account recovery)"); err != nil {
			return draft, err
		}
	}
	return draft, nil
}

// Confirm implements capture.Confirmer
func (p *prompter) Confirm(_ context.Context, frame capture.Frame) (capture.Decision, error) {
	mime := "image"
	if rest, ok := strings.CutPrefix(string(frame), "data:"); ok {
		mime, _, _ = strings.Cut(rest, ";")
	}
	fmt.Fprintf(p.out, "Captured %s (%d bytes encoded).\n", mime, len(capture.StripDataURI(string(frame))))

	answer, err := p.ask("Use this photo? [u]se, [r]etake, [c]ancel", "u")
	if err != nil {
		return capture.Cancel, err
	}
	switch strings.ToLower(answer) {
	case "u", "use", "y", "yes":
		return capture.Use, nil
	case "r", "retake":
		return capture.Retake, nil
	default:
		return capture.Cancel, nil
	}
}
