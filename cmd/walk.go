package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	service "github.com/okian/funnel/internal/app"
	"github.com/okian/funnel/internal/domain/profile"
	"github.com/okian/funnel/internal/domain/quiz"
)

// terminal scrolls by printing a rule between questions.
type terminal struct {
	out io.Writer
}

func (t terminal) ScrollToTop() {
	fmt.Fprintln(t.out, strings.Repeat("-", 40))
}

// walk takes one visitor through the funnel, reading choices from in.
// Commands on the quiz page: a number selects that option, n advances,
// b goes back, q quits.
func walk(ctx context.Context, svc *service.Service, landing string, in io.Reader, out io.Writer) error {
	sctx, sess, err := svc.NewSession(ctx, landing)
	if err != nil {
		return err
	}
	sess.Mount(sctx)
	loc := sess.Location()
	fmt.Fprintf(out, "Landing on %s\n", loc.String())

	lines := bufio.NewScanner(in)
	read := func() (string, bool) {
		if !lines.Scan() {
			return "", false
		}
		return strings.TrimSpace(lines.Text()), true
	}

	store := profile.FromContext(sctx)
	if name := store.UserName(); name != "" {
		fmt.Fprintf(out, "Welcome back, %s\n", name)
	} else {
		fmt.Fprint(out, "Your name: ")
		if name, ok := read(); ok && name != "" {
			store.SetUserName(sctx, name)
		}
	}

	m, err := sess.StartQuiz(sctx, quiz.WithViewport(terminal{out: out}))
	if err != nil {
		return err
	}
	sess.Mount(sctx)

	for !m.Exited() {
		printStep(out, m)
		cmd, ok := read()
		if !ok || cmd == "q" {
			fmt.Fprintln(out, "Bye")
			return nil
		}

		var tr quiz.Transition
		switch cmd {
		case "n":
			tr, err = m.Advance(sctx)
			if tr == quiz.TransitionNone && err == nil {
				fmt.Fprintln(out, "Pick an answer first")
			}
		case "b":
			tr, err = m.Retreat(sctx)
		default:
			err = selectByNumber(m, cmd)
			if err != nil {
				fmt.Fprintln(out, err)
				err = nil
			}
		}
		if tr == quiz.TransitionExited {
			sess.Mount(sctx)
		}
		if err != nil {
			return err
		}
	}

	loc = sess.Location()
	fmt.Fprintf(out, "Now on %s\n", loc.String())
	fmt.Fprintln(out, "Visited:")
	for _, entry := range sess.History() {
		fmt.Fprintf(out, "  %s\n", entry)
	}
	return nil
}

func selectByNumber(m *quiz.Machine, cmd string) error {
	n, err := strconv.Atoi(cmd)
	step := m.Step()
	if err != nil || n < 1 || n > len(step.Options) {
		return fmt.Errorf("unknown command %q", cmd)
	}
	return m.SelectAnswer(m.CurrentStep(), step.Options[n-1].ID)
}

func printStep(out io.Writer, m *quiz.Machine) {
	step := m.Step()
	selected := m.Selected()
	labels := m.NavLabels()

	fmt.Fprintf(out, "Pergunta %d de %d (%d%%)\n", m.CurrentStep(), m.TotalSteps(), m.Progress())
	fmt.Fprintln(out, step.Question)
	if step.Context != "" {
		fmt.Fprintln(out, step.Context)
	}
	for i, opt := range step.Options {
		mark := " "
		if opt.ID == selected {
			mark = "*"
		}
		fmt.Fprintf(out, " %s %d) %s\n", mark, i+1, opt.Label)
	}
	next := labels.Next
	if !m.CanAdvance() {
		next += " (indisponível)"
	}
	fmt.Fprintf(out, "[b] %s  [n] %s  [q] sair\n> ", labels.Back, next)
}
