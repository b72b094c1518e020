package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// credentialPrompter asks the user for account credentials.
type credentialPrompter interface {
	Password(prompt string) (string, error)
	Line(prompt string) (string, error)
}

// newPrompter is swapped out by tests.
var newPrompter = func() credentialPrompter {
	return &ttyPrompter{in: os.Stdin, out: os.Stderr}
}

// ttyPrompter reads from a terminal with echo disabled for passwords. When
// stdin is not a terminal it reads plain lines, so input can be piped.
type ttyPrompter struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

func (p *ttyPrompter) isTerminal() bool {
	fd := p.in.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Password prints prompt and reads a line without echoing it.
func (p *ttyPrompter) Password(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)

	if !p.isTerminal() {
		return p.readLine()
	}

	b, err := term.ReadPassword(int(p.in.Fd()))
	fmt.Fprintln(p.out)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return string(b), nil
}

// Line prints prompt and reads one line of input.
func (p *ttyPrompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)

	return p.readLine()
}

func (p *ttyPrompter) readLine() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.in)
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}
