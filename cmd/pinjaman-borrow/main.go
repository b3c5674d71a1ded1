package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/client"
	"github.com/pinjaman/hybrid/internal/config"
	"github.com/pinjaman/hybrid/internal/infra/gateway"
	"github.com/pinjaman/hybrid/internal/service"
	"github.com/pinjaman/hybrid/internal/usecase"
	"github.com/pinjaman/hybrid/jwt"
)

const viewerTokenTTL = 10 * time.Minute

type app struct {
	conf     config.Config
	signer   *pinjaman.KeySigner
	client   *client.Client
	loan     *usecase.LoanUsecase
	position *usecase.PositionUsecase
	closer   func()
}

func setup(ctx context.Context, path string) (*app, error) {
	conf, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if conf.Wallet.PrivateKey == "" || conf.Wallet.DraftEndpoint == "" {
		return nil, fmt.Errorf("wallet.privatekey and wallet.draftEndpoint are required")
	}

	signer, err := pinjaman.NewKeySigner(conf.Wallet.PrivateKey)
	if err != nil {
		return nil, err
	}

	chain := conf.Chain.Domain()
	eth, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return nil, err
	}
	ledger, err := gateway.NewLedgerGateway(eth, chain, signer.PrivateKey())
	if err != nil {
		eth.Close()
		return nil, err
	}

	cl := client.New(conf.Wallet.DraftEndpoint, conf.Server.SubmitTimeoutDuration)
	drafts := gateway.NewDraftGateway(cl)

	return &app{
		conf:     conf,
		signer:   signer,
		client:   cl,
		loan:     usecase.NewLoanUsecase(ledger, drafts, signer, chain, conf.Risk.Domain()),
		position: usecase.NewPositionUsecase(ledger, drafts, nil, nil, chain, conf.Risk.Domain()),
		closer:   eth.Close,
	}, nil
}

// viewerToken signs a short-lived token proving the CLI holds the wallet key.
func (a *app) viewerToken() (string, error) {
	claims := jwt.NewClaims(
		a.signer.Address().Hex(),
		service.ViewerSubject,
		a.conf.Chain.ViewerAudience(),
		time.Now(),
		viewerTokenTTL,
	)
	return jwt.Create(claims, a.signer.PrivateKey())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid position id %q", arg)
	}
	return id, nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		configPath string
		a          *app
	)

	root := &cobra.Command{
		Use:           "pinjaman-borrow",
		Short:         "Borrow IDR against crypto collateral",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = setup(cmd.Context(), configPath)
			return err
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	var req usecase.OpenRequest
	var token string
	open := &cobra.Command{
		Use:   "open",
		Short: "Sign bank details and open a position",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Token = pinjaman.Token(token)
			result, err := a.loan.Open(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	open.Flags().StringVar(&token, "token", string(pinjaman.TokenNative), "collateral token (ETH or USDC)")
	open.Flags().StringVar(&req.CollateralAmount, "amount", "", "collateral amount, e.g. 0.5")
	open.Flags().StringVar(&req.RequestedAmount, "requested", "", "requested IDR, e.g. 10.000.000")
	open.Flags().StringVar(&req.RecipientName, "recipient", "", "bank account holder")
	open.Flags().StringVar(&req.BankName, "bank", "", "bank name")
	open.Flags().StringVar(&req.AccountNumber, "account", "", "bank account number")

	repay := &cobra.Command{
		Use:   "repay <position-id>",
		Short: "Tell the ledger the IDR repayment was sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ref, err := a.position.RequestRepay(cmd.Context(), id, a.signer.Address())
			if err != nil {
				return err
			}
			return printJSON(ref)
		},
	}

	withdraw := &cobra.Command{
		Use:   "withdraw <position-id>",
		Short: "Withdraw collateral of a closed position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			receipt, err := a.position.WithdrawCollateral(cmd.Context(), id, a.signer.Address())
			if err != nil {
				return err
			}
			return printJSON(receipt)
		},
	}

	positions := &cobra.Command{
		Use:   "positions [position-id]",
		Short: "List positions of the wallet, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.viewerToken()
			if err != nil {
				return err
			}
			a.client.SetViewerToken(token)

			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				view, err := a.client.GetPosition(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(view)
			}

			list, err := a.client.ListPositions(cmd.Context(), a.signer.Address().Hex())
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}

	root.AddCommand(open, repay, withdraw, positions)

	err := root.ExecuteContext(ctx)
	if a != nil {
		a.closer()
	}
	if err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
