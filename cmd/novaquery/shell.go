package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const (
	promptMain = "novaquery> "
	promptMore = "...> "
)

const helpText = `meta commands:
  \q | quit | exit       quit
  \history               print history
  \explain <select>      show the compiled operators
  \help                  show help

sql:
  end statements with ';'
  multiline input waits until ';'`

func newShellCmd() *cobra.Command {
	var (
		addr     string
		timeout  time.Duration
		histPath string
		histMax  int
	)
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive SQL shell, local or against a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRunner(addr, timeout)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			h, err := OpenHistory(histPath, histMax)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%v; history is not saved\n", err)
				h, _ = OpenHistory("", histMax)
			}
			defer func() { _ = h.Close() }()
			return runShell(r, h, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "server address; empty runs in-process")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "dial and request timeout")
	cmd.Flags().StringVar(&histPath, "history", defaultHistoryPath(), "history file path")
	cmd.Flags().IntVar(&histMax, "history-max", 2000, "statements kept in memory")
	return cmd
}

func runShell(r runner, h *History, addr string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptMain,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.Lines() {
		_ = rl.SaveHistory(line)
	}

	s := &shell{r: r, h: h, out: rl.Stdout()}
	if addr != "" {
		fmt.Fprintf(s.out, "connected to %s\n", addr)
	}
	fmt.Fprintln(s.out, "type \\help for help")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if s.pending() {
				s.reset()
				rl.SetPrompt(promptMain)
				continue
			}
			fmt.Fprintln(s.out, "^C")
			continue
		}
		if err != nil {
			fmt.Fprintln(s.out)
			return nil
		}

		stmt, quit := s.feed(line)
		if quit {
			return nil
		}
		if stmt != "" {
			_ = rl.SaveHistory(compactOneLine(stmt))
		}
		if s.pending() {
			rl.SetPrompt(promptMore)
		} else {
			rl.SetPrompt(promptMain)
		}
	}
}

// shell accumulates input lines into statements and runs them.
type shell struct {
	r   runner
	h   *History
	out io.Writer
	buf strings.Builder
}

func (s *shell) pending() bool { return s.buf.Len() > 0 }
func (s *shell) reset()        { s.buf.Reset() }

// feed consumes one input line. It returns the statement it ran, if any,
// and whether the shell should exit.
func (s *shell) feed(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if !s.pending() && isMetaCommand(line) {
		return "", s.meta(line)
	}

	if s.pending() {
		s.buf.WriteByte(' ')
	}
	s.buf.WriteString(line)
	if !statementComplete(s.buf.String()) {
		return "", false
	}

	stmt := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	_ = s.h.Add(stmt)

	res, err := s.r.Exec(stmt)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return stmt, false
	}
	printResult(s.out, res)
	return stmt, false
}

func (s *shell) meta(line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "\\q", "quit", "exit":
		return true
	case "\\help":
		fmt.Fprintln(s.out, helpText)
	case "\\history":
		s.h.Print(s.out, 50)
	case "\\explain":
		plan, err := s.r.Explain(strings.TrimSpace(arg))
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			break
		}
		fmt.Fprintln(s.out, plan)
	default:
		fmt.Fprintf(s.out, "unknown command: %s\n", line)
	}
	return false
}
