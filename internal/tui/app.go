package tui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jask/sorodeposit/internal/config"
	"github.com/jask/sorodeposit/internal/service"
)

// Depositor is the orchestration surface the screen drives.
type Depositor interface {
	Connect(ctx context.Context) (string, error)
	Reconcile(ctx context.Context) (string, bool)
	WalletBalance(ctx context.Context, address string) service.Balance
	ContractBalance(ctx context.Context, address string) service.Balance
	TokenAddress(ctx context.Context, address string) (string, error)
	CheckNetwork(ctx context.Context) error
	Validate(req service.SubmitRequest) (decimal.Decimal, error)
	Submit(ctx context.Context, req service.SubmitRequest, progress service.Progress) (service.Receipt, error)
}

// App is the single deposit screen.
type App struct {
	ctx  context.Context
	cfg  config.Config
	dep  Depositor
	logs *zap.SugaredLogger

	keys   keyMap
	help   help.Model
	spin   spinner.Model
	inputs [2]textinput.Model
	focus  service.Direction
	width  int

	connected   bool
	connecting  bool
	address     string
	walletBal   service.Balance
	contractBal service.Balance
	token       string

	phase    service.Phase
	progress <-chan service.Phase

	message transient
	msgSeq  int
	confirm *confirmRequestMsg

	copyText func(string) error
}

func New(ctx context.Context, cfg config.Config, dep Depositor, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	a := &App{
		ctx:      ctx,
		cfg:      cfg,
		dep:      dep,
		logs:     logger,
		keys:     defaultKeys(),
		help:     help.New(),
		spin:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(infoStyle)),
		focus:    service.Deposit,
		copyText: clipboard.WriteAll,
	}
	for i := range a.inputs {
		in := textinput.New()
		in.Placeholder = "0.0"
		in.Prompt = "› "
		in.CharLimit = 24
		in.Width = 20
		a.inputs[i] = in
	}
	a.inputs[service.Deposit].Focus()
	return a
}

// busy gates every key that would start a connect or a submission.
func (a *App) busy() bool {
	return a.phase != service.PhaseIdle || a.connecting
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.reconcileCmd(), a.checkNetworkCmd(), a.spin.Tick, textinput.Blink)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
		a.help.Width = m.Width
	case tea.FocusMsg:
		if a.busy() {
			return a, nil
		}
		return a, a.reconcileCmd()
	case tea.KeyMsg:
		return a.handleKey(m)
	case reconciledMsg:
		if !m.ok {
			return a, nil
		}
		a.connected = true
		a.address = m.address
		return a, a.refreshCmd()
	case connectedMsg:
		a.connecting = false
		if m.err != nil {
			return a, a.flashError(m.err)
		}
		a.connected = true
		a.address = m.address
		return a, tea.Batch(a.flash(messageSuccess, "Wallet connected successfully!"), a.refreshCmd())
	case walletBalanceMsg:
		if m.address == a.address {
			a.walletBal = m.balance
		}
	case contractBalanceMsg:
		if m.address == a.address {
			a.contractBal = m.balance
		}
	case tokenMsg:
		if m.err != nil {
			a.logs.Warnw("read token failed", "error", m.err)
			return a, nil
		}
		a.token = m.token
	case networkCheckedMsg:
		if m.err != nil {
			a.logs.Errorw("network check failed", "error", m.err)
			return a, a.flashError(m.err)
		}
	case phaseMsg:
		if m.ch != a.progress {
			return a, nil
		}
		var cmd tea.Cmd
		if !m.phase.Terminal() {
			a.phase = m.phase
			cmd = a.flash(messageInfo, m.phase.Step())
		}
		return a, tea.Batch(cmd, waitPhase(m.ch))
	case submittedMsg:
		a.progress = nil
		a.phase = service.PhaseIdle
		if m.err != nil {
			return a, a.flashError(m.err)
		}
		a.inputs[m.direction].Reset()
		return a, tea.Batch(a.flash(messageSuccess, m.receipt.Message()), a.refreshCmd())
	case copiedMsg:
		if m.err != nil {
			return a, a.flashError(m.err)
		}
		return a, a.flash(messageSuccess, "Address copied to clipboard")
	case confirmRequestMsg:
		if a.confirm != nil {
			m.reply <- false
			return a, nil
		}
		a.confirm = &m
	case dismissMsg:
		if m.seq == a.message.seq {
			a.message = transient{}
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(m)
		return a, cmd
	default:
		var cmd tea.Cmd
		a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.confirm != nil {
		switch {
		case key.Matches(m, a.keys.Approve):
			a.answer(true)
		case key.Matches(m, a.keys.Decline):
			a.answer(false)
		case m.String() == "ctrl+c":
			a.answer(false)
			return a, tea.Quit
		}
		return a, nil
	}

	switch {
	case key.Matches(m, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(m, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
		return a, nil
	case key.Matches(m, a.keys.Connect):
		if a.busy() || a.connected {
			return a, nil
		}
		a.connecting = true
		return a, a.connectCmd()
	case key.Matches(m, a.keys.Refresh):
		if !a.connected {
			return a, nil
		}
		return a, a.refreshCmd()
	case key.Matches(m, a.keys.Copy):
		if !a.connected {
			return a, nil
		}
		return a, a.copyCmd(a.address)
	case key.Matches(m, a.keys.Switch):
		a.switchFocus()
		return a, nil
	case key.Matches(m, a.keys.Submit):
		return a, a.submit()
	}

	if a.busy() {
		return a, nil
	}
	var cmd tea.Cmd
	a.inputs[a.focus], cmd = a.inputs[a.focus].Update(m)
	return a, cmd
}

func (a *App) answer(ok bool) {
	a.confirm.reply <- ok
	a.confirm = nil
}

func (a *App) switchFocus() {
	if !a.cfg.Features.Withdraw {
		return
	}
	a.inputs[a.focus].Blur()
	if a.focus == service.Deposit {
		a.focus = service.Withdraw
	} else {
		a.focus = service.Deposit
	}
	a.inputs[a.focus].Focus()
}

// submit validates locally, then starts the flow. An empty input does
// nothing.
func (a *App) submit() tea.Cmd {
	if a.busy() {
		return nil
	}
	raw := strings.TrimSpace(a.inputs[a.focus].Value())
	if raw == "" {
		return nil
	}
	req := service.SubmitRequest{
		Direction:            a.focus,
		Amount:               raw,
		Address:              a.address,
		KnownContractBalance: a.contractBal,
	}
	if _, err := a.dep.Validate(req); err != nil {
		return a.flashError(err)
	}

	ch := make(chan service.Phase, 16)
	a.progress = ch
	a.phase = service.PhaseBuilding
	return tea.Batch(a.submitCmd(req, ch), waitPhase(ch))
}

// commands
func (a *App) submitCmd(req service.SubmitRequest, ch chan<- service.Phase) tea.Cmd {
	return func() tea.Msg {
		rec, err := a.dep.Submit(a.ctx, req, func(p service.Phase) { ch <- p })
		close(ch)
		return submittedMsg{direction: req.Direction, receipt: rec, err: err}
	}
}

func waitPhase(ch <-chan service.Phase) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return phaseMsg{phase: p, ch: ch}
	}
}

func (a *App) reconcileCmd() tea.Cmd {
	return func() tea.Msg {
		addr, ok := a.dep.Reconcile(a.ctx)
		return reconciledMsg{address: addr, ok: ok}
	}
}

func (a *App) connectCmd() tea.Cmd {
	return func() tea.Msg {
		addr, err := a.dep.Connect(a.ctx)
		return connectedMsg{address: addr, err: err}
	}
}

func (a *App) checkNetworkCmd() tea.Cmd {
	return func() tea.Msg {
		return networkCheckedMsg{err: a.dep.CheckNetwork(a.ctx)}
	}
}

func (a *App) refreshCmd() tea.Cmd {
	addr := a.address
	cmds := []tea.Cmd{func() tea.Msg {
		return walletBalanceMsg{address: addr, balance: a.dep.WalletBalance(a.ctx, addr)}
	}}
	if a.cfg.Features.Withdraw {
		cmds = append(cmds, func() tea.Msg {
			return contractBalanceMsg{address: addr, balance: a.dep.ContractBalance(a.ctx, addr)}
		})
	}
	if a.token == "" {
		cmds = append(cmds, func() tea.Msg {
			token, err := a.dep.TokenAddress(a.ctx, addr)
			return tokenMsg{token: token, err: err}
		})
	}
	return tea.Batch(cmds...)
}

func (a *App) copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: a.copyText(text)}
	}
}
