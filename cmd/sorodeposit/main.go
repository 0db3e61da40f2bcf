package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jask/sorodeposit/internal/config"
	"github.com/jask/sorodeposit/internal/poll"
	"github.com/jask/sorodeposit/internal/secrets"
	"github.com/jask/sorodeposit/internal/service"
	"github.com/jask/sorodeposit/internal/stellar"
	"github.com/jask/sorodeposit/internal/tui"
	"github.com/jask/sorodeposit/internal/wallet"
	"github.com/jask/sorodeposit/pkg/log"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sorodeposit: %v\n", err)
		os.Exit(1)
	}
}

// session is what every subcommand shares once configuration is loaded.
type session struct {
	cfg   config.Config
	logs  *zap.SugaredLogger
	store *secrets.Store
	http  *http.Client
}

func newRootCommand() *cobra.Command {
	s := &session{}
	cmd := &cobra.Command{
		Use:           "sorodeposit",
		Short:         "Deposit and withdraw XLM through a Soroban contract",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if s.logs != nil {
				_ = s.logs.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return s.runTUI(ctx)
		},
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newBalanceCommand(s),
		newSubmitCommand(s, service.Deposit),
		newSubmitCommand(s, service.Withdraw),
		newStatusCommand(s),
		newWalletCommand(s),
	)
	return cmd
}

func (s *session) load(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logs, err := log.NewZapLogger("sorodeposit", log.ParseLevel(cfg.Log.Level), cfg.Log.Path)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	s.cfg = cfg
	s.logs = logs
	s.store = secrets.NewStore(cfg.Wallet.Keystore)
	s.http = &http.Client{Timeout: cfg.HTTP.Timeout}
	logs.Infow("config loaded",
		"network", cfg.Network.Name,
		"rpc", cfg.Network.RPCURL,
		"horizon", cfg.Network.HorizonURL,
		"contract", cfg.Contract.Address,
		"withdraw", cfg.Features.Withdraw,
	)
	return nil
}

// depositor wires the gateways. Callers close the returned RPC client.
func (s *session) depositor(confirm wallet.Confirmer) (*service.Depositor, *stellar.RPCClient) {
	cfg := s.cfg
	rpc := stellar.NewRPCClient(cfg.Network.RPCURL, s.http)
	keys := wallet.NewKeystore(s.store, cfg.Wallet.Name, cfg.UI.AppName, confirm,
		wallet.WithAutoApproveSign(cfg.Wallet.AutoApproveSign),
		wallet.WithLogger(s.logs),
	)
	dep := service.NewDepositor(
		keys,
		stellar.NewHorizon(cfg.Network.HorizonURL, s.http),
		rpc,
		poll.New(poll.Policy{Interval: cfg.Poll.Interval, MaxAttempts: cfg.Poll.MaxAttempts}),
		service.Settings{
			Contract:          cfg.Contract.Address,
			NetworkPassphrase: cfg.Network.Passphrase,
			Withdraw:          cfg.Features.Withdraw,
		},
		service.WithLogger(s.logs),
	)
	return dep, rpc
}

func (s *session) runTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridge := tui.NewBridge()
	dep, rpc := s.depositor(bridge)
	defer rpc.Close()

	p := tea.NewProgram(tui.New(ctx, s.cfg, dep, s.logs),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	bridge.Attach(p)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		s.logs.Errorw("tui exited", "error", err)
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
