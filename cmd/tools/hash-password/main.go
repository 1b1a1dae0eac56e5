// Command hash-password derives the admin password hash consumed through
// GIFAPI_ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"gif-api/internal/auth"
)

const minPasswordLength = 8

// readPassword reads from a terminal without echo. Replaced in tests.
var readPassword = term.ReadPassword

var isTerminal = term.IsTerminal

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(stderr)
	password := fs.String("password", "", "password to hash (read from stdin when omitted)")
	envLine := fs.Bool("env", false, "print an export line instead of the bare hash")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret := *password
	if secret == "" {
		var err error
		secret, err = promptPassword(stdin, stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}
	if len(secret) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := auth.HashPassword(secret)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if *envLine {
		_, err = fmt.Fprintf(stdout, "export GIFAPI_ADMIN_PASSWORD_HASH='%s'\n", hash)
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

// promptPassword asks twice on a terminal, or reads one line from piped input.
func promptPassword(stdin *os.File, prompt io.Writer) (string, error) {
	fd := int(stdin.Fd())
	if !isTerminal(fd) {
		return readLine(stdin)
	}

	fmt.Fprint(prompt, "Enter password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}
	fmt.Fprint(prompt, "Confirm password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
