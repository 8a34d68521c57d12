package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/xerrors"
)

// Prompt asks yes/no questions to the user on a terminal. The input is read
// line by line by a single goroutine started on the first question, so that
// every question asked through the same prompt shares the input. A line that
// arrives after an interrupted question answers the next one.
//
// - implements wallet.Approver
type Prompt struct {
	once  sync.Once
	in    io.Reader
	out   io.Writer
	lines chan answer
}

type answer struct {
	line string
	err  error
}

// NewPrompt returns a prompt reading the answers from the input.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{
		in:    in,
		out:   out,
		lines: make(chan answer),
	}
}

// Ask prints the question and waits for an answer, or until the context is
// done. Only "y" and "yes" are positive answers, and a closed input declines.
func (p *Prompt) Ask(ctx context.Context, question string) (bool, error) {
	fmt.Fprint(p.out, question)

	p.once.Do(func() { go p.read() })

	select {
	case <-ctx.Done():
		return false, xerrors.Errorf("prompt interrupted: %v", ctx.Err())
	case a, ok := <-p.lines:
		if !ok {
			return false, nil
		}

		if a.err != nil && a.err != io.EOF {
			return false, xerrors.Errorf("failed to read answer: %v", a.err)
		}

		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

// Approve implements wallet.Approver. It prints the call and asks the user.
func (p *Prompt) Approve(ctx context.Context, req Request) (bool, error) {
	return p.Ask(ctx, fmt.Sprintf("Sign %s from %s to %s for at most %s? [y/N] ",
		req.Call.Method, req.From.Hex(), req.Call.To.Hex(), req.Cost))
}

// read delivers the lines of the input one at a time until the input is
// closed or fails.
func (p *Prompt) read() {
	defer close(p.lines)

	reader := bufio.NewReader(p.in)

	for {
		line, err := reader.ReadString('\n')
		if line != "" || (err != nil && err != io.EOF) {
			p.lines <- answer{line: line, err: err}
		}

		if err != nil {
			return
		}
	}
}
