package tui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/sorodeposit/internal/wallet"
)

var errNoProgram = errors.New("no terminal attached to confirm the request")

// Bridge is a wallet.Confirmer that asks inside the running program. Gateway
// calls block until the user answers the modal.
type Bridge struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach routes requests into p. Call it before p.Run.
func (b *Bridge) Attach(p *tea.Program) {
	b.AttachFunc(p.Send)
}

func (b *Bridge) AttachFunc(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

func (b *Bridge) ConfirmAccess(ctx context.Context, req wallet.AccessRequest) (bool, error) {
	return b.ask(ctx, confirmRequestMsg{access: &req})
}

func (b *Bridge) ConfirmSign(ctx context.Context, req wallet.SignRequest) (bool, error) {
	return b.ask(ctx, confirmRequestMsg{sign: &req})
}

func (b *Bridge) ask(ctx context.Context, msg confirmRequestMsg) (bool, error) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send == nil {
		return false, errNoProgram
	}

	reply := make(chan bool, 1)
	msg.reply = reply
	send(msg)
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
