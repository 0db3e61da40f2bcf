package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/sorodeposit/internal/service"
)

func (a *App) View() string {
	if a.confirm != nil {
		return a.renderConfirm()
	}

	sections := []string{
		a.renderHeader(),
		a.renderAccount(),
		a.renderForms(),
		a.renderMessage(),
		a.renderContractInfo(),
		a.help.View(a.keys),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderHeader() string {
	return titleStyle.Render(a.cfg.UI.AppName) + "  " + networkStyle.Render(a.cfg.Network.Name)
}

func (a *App) renderAccount() string {
	var rows []string
	if !a.connected {
		hint := "press c to connect"
		if a.connecting {
			hint = a.spin.View() + " connecting..."
		}
		rows = append(rows, row("Wallet", dimStyle.Render("not connected ("+hint+")")))
		return panelStyle.Render(strings.Join(rows, "\n"))
	}
	rows = append(rows,
		row("Wallet", valueStyle.Render(shortAddress(a.address))),
		row("Balance", amountStyle.Render(withUnit(a.walletBal))),
	)
	if a.cfg.Features.Withdraw {
		rows = append(rows, row("In contract", amountStyle.Render(withUnit(a.contractBal))))
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func (a *App) renderForms() string {
	forms := []string{a.renderForm(service.Deposit)}
	if a.cfg.Features.Withdraw {
		forms = append(forms, a.renderForm(service.Withdraw))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, forms...)
}

func (a *App) renderForm(dir service.Direction) string {
	title := "Deposit"
	if dir == service.Withdraw {
		title = "Withdraw"
	}
	in := a.inputs[dir]

	action := "enter to " + dir.String()
	switch {
	case a.busy() && a.focus == dir && a.phase != service.PhaseIdle:
		action = a.spin.View() + " " + a.phase.String()
	case a.busy() || strings.TrimSpace(in.Value()) == "" || a.focus != dir:
		action = dimStyle.Render(action)
	}

	body := fmt.Sprintf("%s\n%s XLM\n%s", titleStyle.Render(title), in.View(), action)
	if a.focus == dir {
		return focusedPanelStyle.Render(body)
	}
	return panelStyle.Render(body)
}

func (a *App) renderMessage() string {
	switch a.message.kind {
	case messageSuccess:
		return successStyle.Render("✓ " + a.message.text)
	case messageError:
		return errorStyle.Render("✗ " + a.message.text)
	case messageInfo:
		return infoStyle.Render(a.spin.View() + " " + a.message.text)
	default:
		return ""
	}
}

func (a *App) renderContractInfo() string {
	token := a.token
	if token == "" {
		token = "-"
	}
	rows := []string{
		row("Contract", dimStyle.Render(a.cfg.Contract.Address)),
		row("Token", dimStyle.Render(token)),
		row("Network", dimStyle.Render(a.cfg.Network.Passphrase)),
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func (a *App) renderConfirm() string {
	var b strings.Builder
	switch {
	case a.confirm.access != nil:
		req := a.confirm.access
		b.WriteString(titleStyle.Render("Connection request") + "\n\n")
		fmt.Fprintf(&b, "%s wants to read the address of wallet %q.\n", req.App, req.Wallet)
	case a.confirm.sign != nil:
		req := a.confirm.sign
		b.WriteString(titleStyle.Render("Signature request") + "\n\n")
		b.WriteString(row("Signer", shortAddress(req.Address)) + "\n")
		b.WriteString(row("Hash", req.Hash) + "\n")
		b.WriteString(row("Max fee", fmt.Sprintf("%d stroops", req.Fee)) + "\n")
		for _, op := range req.Operations {
			b.WriteString(row("Operation", op) + "\n")
		}
	}
	b.WriteString("\n" + a.help.View(modalKeys{a.keys}))
	return modalStyle.Render(b.String())
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func withUnit(b service.Balance) string {
	if b.State == service.BalanceKnown {
		return b.String() + " XLM"
	}
	return b.String()
}

// shortAddress renders GABCDE...WXYZ.
func shortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
