package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Prompt confirms requests with a y/N question on a line-oriented terminal.
type Prompt struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

func (p *Prompt) ConfirmAccess(ctx context.Context, req AccessRequest) (bool, error) {
	return p.ask(ctx, fmt.Sprintf("Allow %s to read the address of wallet %q?", req.App, req.Wallet))
}

func (p *Prompt) ConfirmSign(ctx context.Context, req SignRequest) (bool, error) {
	fmt.Fprintf(p.out, "Sign transaction %s\n", req.Hash)
	fmt.Fprintf(p.out, "  signer:  %s\n", req.Address)
	fmt.Fprintf(p.out, "  network: %s\n", req.NetworkPassphrase)
	fmt.Fprintf(p.out, "  max fee: %d stroops\n", req.Fee)
	for _, op := range req.Operations {
		fmt.Fprintf(p.out, "  - %s\n", op)
	}
	return p.ask(ctx, "Approve?")
}

func (p *Prompt) ask(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "%s [y/N] ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// AutoConfirm approves everything. Used for --yes in scripted runs.
type AutoConfirm struct{}

func (AutoConfirm) ConfirmAccess(context.Context, AccessRequest) (bool, error) { return true, nil }
func (AutoConfirm) ConfirmSign(context.Context, SignRequest) (bool, error)     { return true, nil }
