package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jask/sorodeposit/internal/amount"
	"github.com/jask/sorodeposit/internal/service"
	"github.com/jask/sorodeposit/internal/wallet"
)

const flagYes = "yes"

func (s *session) confirmer(cmd *cobra.Command) wallet.Confirmer {
	if yes, _ := cmd.Flags().GetBool(flagYes); yes {
		return wallet.AutoConfirm{}
	}
	return wallet.NewPrompt(cmd.InOrStdin(), cmd.OutOrStdout())
}

// userError logs err in full and returns the one-line text shown on screen.
func (s *session) userError(op string, err error) error {
	s.logs.Errorw(op+" failed", "error", err)
	return errors.New(service.UserMessage(err))
}

func newBalanceCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the wallet and contract balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dep, rpc := s.depositor(s.confirmer(cmd))
			defer rpc.Close()

			address, err := dep.Connect(ctx)
			if err != nil {
				return s.userError("connect", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Address:     %s\n", address)
			fmt.Fprintf(out, "Balance:     %s\n", withUnit(dep.WalletBalance(ctx, address)))
			if s.cfg.Features.Withdraw {
				fmt.Fprintf(out, "In contract: %s\n", withUnit(dep.ContractBalance(ctx, address)))
			}
			if token, err := dep.TokenAddress(ctx, address); err == nil {
				fmt.Fprintf(out, "Token:       %s\n", token)
			}
			return nil
		},
	}
	cmd.Flags().Bool(flagYes, false, "approve wallet access without asking")
	return cmd
}

func newSubmitCommand(s *session, dir service.Direction) *cobra.Command {
	cmd := &cobra.Command{
		Use:   dir.String() + " AMOUNT",
		Short: fmt.Sprintf("%s XLM and wait for confirmation", strings.ToUpper(dir.String()[:1])+dir.String()[1:]),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == service.Withdraw && !s.cfg.Features.Withdraw {
				return errors.New(service.UserMessage(service.ErrWithdrawDisabled))
			}
			ctx := cmd.Context()
			dep, rpc := s.depositor(s.confirmer(cmd))
			defer rpc.Close()

			// Reject a bad amount before any wallet prompt.
			if _, err := amount.ParsePositive(args[0]); err != nil {
				return errors.New(service.UserMessage(service.ErrInvalidAmount))
			}
			req := service.SubmitRequest{Direction: dir, Amount: args[0]}

			address, err := dep.Connect(ctx)
			if err != nil {
				return s.userError("connect", err)
			}
			req.Address = address
			if dir == service.Withdraw {
				req.KnownContractBalance = dep.ContractBalance(ctx, address)
			}

			out := cmd.OutOrStdout()
			rec, err := dep.Submit(ctx, req, func(p service.Phase) {
				if step := p.Step(); step != "" {
					fmt.Fprintln(out, step)
				}
			})
			if err != nil {
				return s.userError(dir.String(), err)
			}
			fmt.Fprintln(out, rec.Message())
			fmt.Fprintf(out, "Hash:   %s\nLedger: %d\n", rec.Hash, rec.Ledger)
			return nil
		},
	}
	cmd.Flags().Bool(flagYes, false, "approve wallet access and signing without asking")
	return cmd
}

func newStatusCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the RPC endpoint and its network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dep, rpc := s.depositor(wallet.AutoConfirm{})
			defer rpc.Close()

			health, err := rpc.GetHealth(ctx)
			if err != nil {
				return s.userError("health", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Network:  %s\n", s.cfg.Network.Name)
			fmt.Fprintf(out, "RPC:      %s (%s, ledger %d)\n", s.cfg.Network.RPCURL, health.Status, health.LatestLedger)
			fmt.Fprintf(out, "Contract: %s\n", s.cfg.Contract.Address)
			if err := dep.CheckNetwork(ctx); err != nil {
				return s.userError("check network", err)
			}
			return nil
		},
	}
}

func newWalletCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage keystore wallets",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "import",
			Short: "Import a secret seed read from stdin",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				seed, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read seed: %w", err)
				}
				address, err := wallet.Import(s.store, s.cfg.Wallet.Name, seed)
				if err != nil {
					return err
				}
				s.logs.Infow("wallet imported", "wallet", s.cfg.Wallet.Name, "address", address)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %q\n", address, s.cfg.Wallet.Name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the wallet address and approval",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				address, err := wallet.Address(s.store, s.cfg.Wallet.Name)
				if err != nil {
					return err
				}
				approved, err := s.store.Approved(s.cfg.Wallet.Name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tapproved=%t\n", s.cfg.Wallet.Name, address, approved)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored wallets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				names, err := s.store.Names()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
		approvalCommand(s, "approve", "Remember connection approval for this app", true),
		approvalCommand(s, "revoke", "Forget connection approval for this app", false),
		&cobra.Command{
			Use:   "remove",
			Short: "Delete the wallet seed",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return s.store.DeleteSeed(s.cfg.Wallet.Name)
			},
		},
	)
	return cmd
}

func approvalCommand(s *session, use, short string, approved bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := wallet.Address(s.store, s.cfg.Wallet.Name); err != nil {
				return err
			}
			return s.store.SetApproved(s.cfg.Wallet.Name, approved)
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func withUnit(b service.Balance) string {
	if b.State == service.BalanceKnown {
		return b.String() + " XLM"
	}
	return b.String()
}
