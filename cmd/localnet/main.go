// Package main runs a single-node local validator with the issuance, NFT and
// counter modules deployed, serving Solana JSON-RPC and websocket
// subscriptions.
//
// Storage is in-memory by default. With --storage=db, accounts and chain
// state live in PostgreSQL and the transaction log in ClickHouse, so the
// ledger survives restarts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"solana-issuance-lab/internal/config"
	"solana-issuance-lab/internal/ledger"
	"solana-issuance-lab/internal/localnet"
	"solana-issuance-lab/internal/observability"
	"solana-issuance-lab/internal/programs"
	"solana-issuance-lab/internal/storage"
	chstore "solana-issuance-lab/internal/storage/clickhouse"
	"solana-issuance-lab/internal/storage/memory"
	"solana-issuance-lab/internal/storage/migrations"
	pgstore "solana-issuance-lab/internal/storage/postgres"
)

const shutdownTimeout = 30 * time.Second

// stores holds the runtime backing.
type stores struct {
	accounts storage.AccountStore
	txs      storage.TransactionStore
	chain    storage.ChainStateStore
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Localnet
	var envFile string

	cmd := &cobra.Command{
		Use:          "localnet",
		Short:        "Run a local validator with the issuance modules deployed",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Load(&cfg, envFile); err != nil {
				return err
			}
			// Flags override the environment.
			for name, dst := range map[string]*string{
				"addr":           &cfg.Addr,
				"storage":        &cfg.Storage,
				"faucet-keypair": &cfg.FaucetKeypair,
				"log-level":      &cfg.Level,
			} {
				if cmd.Flags().Changed(name) {
					*dst, _ = cmd.Flags().GetString(name)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			return run(cmd.Context(), &cfg, logger)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	cmd.Flags().String("addr", "", "listen address (LOCALNET_ADDR)")
	cmd.Flags().String("storage", "", "storage backend: memory or db (STORAGE)")
	cmd.Flags().String("faucet-keypair", "", "faucet keypair file (FAUCET_KEYPAIR)")
	cmd.Flags().String("log-level", "", "log level (LOG_LEVEL)")
	return cmd
}

func run(parent context.Context, cfg *config.Localnet, logger *logrus.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	rt, err := ledger.New(ctx, st.accounts, st.txs,
		ledger.WithLogger(logger),
		ledger.WithChainState(st.chain),
		ledger.WithPrograms(programs.All()...),
	)
	if err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}

	opts := []localnet.Option{
		localnet.WithLogger(logger),
		localnet.WithAirdropCap(cfg.AirdropCap),
		localnet.WithMetrics(observability.NewMetrics(cfg.MetricsNamespace)),
	}
	if cfg.FaucetKeypair != "" {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.FaucetKeypair)
		if err != nil {
			return fmt.Errorf("load faucet keypair: %w", err)
		}
		opts = append(opts, localnet.WithFaucet(key))
	}
	v, err := localnet.NewValidator(ctx, rt, st.txs, cfg.FaucetLamports, opts...)
	if err != nil {
		return err
	}
	srv := localnet.NewServer(v, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	// A second signal forces exit.
	go func() {
		select {
		case <-sigCh:
			logger.Warn("second signal, forcing exit")
			os.Exit(1)
		case <-shutdownCtx.Done():
		}
	}()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// createStores builds the runtime backing for cfg.Storage.
func createStores(ctx context.Context, cfg *config.Localnet, logger *logrus.Logger) (*stores, func(), error) {
	if cfg.Storage == config.StorageMemory {
		return &stores{
			accounts: memory.NewAccountStore(),
			txs:      memory.NewTransactionStore(),
			chain:    memory.NewChainStateStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgres(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, nil, err
	}

	conn, err := chstore.OpenDatabase(ctx, cfg.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := migrations.RunClickHouse(ctx, conn, logger); err != nil {
		conn.Close()
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return &stores{
		accounts: pgstore.NewAccountStore(pool),
		txs:      chstore.NewTransactionStore(conn),
		chain:    pgstore.NewChainStateStore(pool),
	}, cleanup, nil
}
