package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/daios-ai/kalc"
)

const (
	appName     = "kalc"
	historyFile = ".kalc_history"
	prompt      = "ready> "
)

var banner = fmt.Sprintf("kalc %s — arithmetic expression compiler\nCtrl+C cancels input, Ctrl+D exits.", kalc.Version)

func main() {
	switch {
	case len(os.Args) == 2:
		os.Exit(runFile(os.Args[1]))
	case len(os.Args) > 2:
		fmt.Fprintf(os.Stderr, "usage: %s [file]\n", appName)
		os.Exit(2)
	case isatty.IsTerminal(os.Stdin.Fd()):
		os.Exit(runInteractive())
	default:
		os.Exit(runStream(os.Stdin))
	}
}

// runFile compiles a script file in stream mode. Compile errors do not
// affect the exit status; only an unreadable file does.
func runFile(path string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, path, err)
		return 1
	}
	defer f.Close()
	return runStream(f)
}

// runStream feeds r through one session: per-expression IR and diagnostics
// to stderr, the final module dump to stdout. The exit status is 0 no
// matter how many lexical, parse or codegen errors occurred.
func runStream(r io.Reader) int {
	s := kalc.NewSession(r, os.Stderr, os.Stdout)
	s.Run()
	return 0
}

// -----------------------------------------------------------------------------
// interactive mode
// -----------------------------------------------------------------------------

func runInteractive() int {
	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	kalc.EnableColor = true
	s := kalc.NewSession(&promptReader{ln: ln}, os.Stderr, os.Stdout)
	s.Run()
	fmt.Println()
	return 0
}

// promptReader adapts liner's line-at-a-time editing to the streaming
// lexer: Read drains the buffered line and prompts for the next one when
// empty. Ctrl+C aborts the pending line; Ctrl+D ends the stream.
type promptReader struct {
	ln  *liner.State
	buf []byte
}

func (r *promptReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		line, err := r.ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			continue
		}
		if err != nil {
			return 0, io.EOF
		}
		if strings.TrimSpace(line) != "" {
			r.ln.AppendHistory(line)
		}
		r.buf = append(r.buf, line...)
		r.buf = append(r.buf, '\n')
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
