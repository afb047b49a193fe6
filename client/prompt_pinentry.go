package client

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/impl/karp/internal/errs"
)

// PinentryPrompt asks for the master password by driving a pinentry binary
// (pinentry-gtk, pinentry-curses, pinentry-mac, ...) over its Assuan
// line protocol on stdin/stdout. Assuan data lines percent-encode "%",
// "\r", and "\n"; nothing else in SETDESC/SETPROMPT/SETERROR needs
// escaping, so only GETPIN's reply is decoded.
type PinentryPrompt struct {
	// Executable is the pinentry binary to run. Empty means "pinentry",
	// resolved through PATH.
	Executable string
}

func (p PinentryPrompt) binary() string {
	if p.Executable == "" {
		return "pinentry"
	}
	return p.Executable
}

func (p PinentryPrompt) Prompt(ctx context.Context, message string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binary())
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: starting pinentry: %v", errs.ErrCancelled, err)
	}

	scanner := bufio.NewScanner(stdout)

	assuan := func(command string) (string, error) {
		if command != "" {
			if _, err := fmt.Fprintf(stdin, "%s\n", command); err != nil {
				return "", err
			}
		}
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "OK" || strings.HasPrefix(line, "OK "):
				return "", nil
			case strings.HasPrefix(line, "ERR "):
				return "", &errs.Password{Message: line}
			case strings.HasPrefix(line, "D "):
				return unescapeAssuan(line[2:]), nil
			case strings.HasPrefix(line, "#"):
				continue
			}
		}
		return "", fmt.Errorf("%w: pinentry closed its output", errs.ErrStreamEnded)
	}

	if _, err := assuan(""); err != nil { // initial OK greeting
		stdin.Close()
		cmd.Wait()
		return "", err
	}
	if _, err := assuan(fmt.Sprintf("SETDESC %s", escapeAssuan(message))); err != nil {
		stdin.Close()
		cmd.Wait()
		return "", err
	}
	if _, err := assuan("SETPROMPT Password:"); err != nil {
		stdin.Close()
		cmd.Wait()
		return "", err
	}

	var pin string
	if _, err := fmt.Fprintf(stdin, "GETPIN\n"); err != nil {
		stdin.Close()
		cmd.Wait()
		return "", err
	}
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "D "):
			pin = unescapeAssuan(line[2:])
		case line == "OK" || strings.HasPrefix(line, "OK "):
			stdin.Close()
			cmd.Wait()
			return pin, nil
		case strings.HasPrefix(line, "ERR "):
			stdin.Close()
			cmd.Wait()
			return "", fmt.Errorf("%w: %v", errs.ErrCancelled, &errs.Password{Message: line})
		}
	}

	stdin.Close()
	cmd.Wait()
	return "", fmt.Errorf("%w: pinentry closed its output before GETPIN completed", errs.ErrStreamEnded)
}

func escapeAssuan(s string) string {
	r := strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	return r.Replace(s)
}

func unescapeAssuan(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			var v int
			if _, err := fmt.Sscanf(s[i+1:i+3], "%02X", &v); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
