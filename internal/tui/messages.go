package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/sorodeposit/internal/service"
	"github.com/jask/sorodeposit/internal/wallet"
)

type reconciledMsg struct {
	address string
	ok      bool
}

type connectedMsg struct {
	address string
	err     error
}

type walletBalanceMsg struct {
	address string
	balance service.Balance
}

type contractBalanceMsg struct {
	address string
	balance service.Balance
}

type tokenMsg struct {
	token string
	err   error
}

type networkCheckedMsg struct{ err error }

type phaseMsg struct {
	phase service.Phase
	ch    <-chan service.Phase
}

type submittedMsg struct {
	direction service.Direction
	receipt   service.Receipt
	err       error
}

type copiedMsg struct{ err error }

type confirmRequestMsg struct {
	access *wallet.AccessRequest
	sign   *wallet.SignRequest
	reply  chan<- bool
}

type dismissMsg struct{ seq int }

type messageKind int

const (
	messageNone messageKind = iota
	messageSuccess
	messageError
	messageInfo
)

// transient is the one status line. Success and error lines expire; info lines
// stay until replaced.
type transient struct {
	kind messageKind
	text string
	seq  int
}

func (a *App) flash(kind messageKind, text string) tea.Cmd {
	a.msgSeq++
	a.message = transient{kind: kind, text: text, seq: a.msgSeq}
	if kind == messageInfo || kind == messageNone {
		return nil
	}
	seq := a.msgSeq
	return tea.Tick(a.cfg.UI.MessageTTL, func(time.Time) tea.Msg {
		return dismissMsg{seq: seq}
	})
}

func (a *App) flashError(err error) tea.Cmd {
	return a.flash(messageError, service.UserMessage(err))
}
