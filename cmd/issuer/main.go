// Package main is the issuer CLI: it funds a payer, creates and mints the
// fungible class, mints unique assets, drives the counter and reads records
// back from a validator over JSON-RPC.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"solana-issuance-lab/internal/client"
	"solana-issuance-lab/internal/config"
	solanarpc "solana-issuance-lab/internal/solana"
)

type ctxKey struct{}

// session is built once per invocation by the root command.
type session struct {
	cfg    config.Issuer
	log    *logrus.Logger
	client *client.Client
	ws     solanarpc.WSClient
}

func unwrap(cmd *cobra.Command) *session {
	return cmd.Context().Value(ctxKey{}).(*session)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var txErr *client.TxError
		if errors.As(err, &txErr) {
			for _, line := range txErr.Logs {
				fmt.Fprintln(os.Stderr, "  "+line)
			}
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	s := &session{}

	cmd := &cobra.Command{
		Use:          "issuer",
		Short:        "Issue tokens and NFTs against a validator",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Load(&s.cfg, envFile); err != nil {
				return err
			}
			for name, dst := range map[string]*string{
				"rpc-url":    &s.cfg.RPCURL,
				"ws-url":     &s.cfg.WSURL,
				"keypair":    &s.cfg.Keypair,
				"commitment": &s.cfg.Commitment,
				"log-level":  &s.cfg.Level,
			} {
				if cmd.Flags().Changed(name) {
					*dst, _ = cmd.Flags().GetString(name)
				}
			}

			logger, err := s.cfg.NewLogger()
			if err != nil {
				return err
			}
			s.log = logger

			payer, err := loadKeypair(s.cfg.Keypair)
			if err != nil {
				return err
			}

			opts := []client.Option{
				client.WithLogger(logger),
				client.WithCommitment(s.cfg.Commitment),
				client.WithConfirmTimeout(s.cfg.ConfirmTimeout),
			}
			wsCfg := solanarpc.DefaultWSConfig()
			wsCfg.Logger = logger
			ws, err := solanarpc.NewWSClient(cmd.Context(), s.cfg.WebsocketURL(), &wsCfg)
			if err != nil {
				logger.WithError(err).Warn("websocket unavailable, confirming by polling")
			} else {
				s.ws = ws
				opts = append(opts, client.WithWebsocket(ws))
			}
			s.client = client.New(solanarpc.NewHTTPClient(s.cfg.RPCURL), payer, opts...)

			logger.WithFields(logrus.Fields{
				"rpc":   s.cfg.RPCURL,
				"payer": payer.PublicKey().String(),
			}).Debug("session")
			cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, s))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if s.ws != nil {
				return s.ws.Close()
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	pf.String("rpc-url", "", "validator JSON-RPC URL (RPC_URL)")
	pf.String("ws-url", "", "validator websocket URL (WS_URL); derived from the RPC URL when unset")
	pf.String("keypair", "", "payer keypair file (KEYPAIR); defaults to ~/.config/solana/id.json")
	pf.String("commitment", "", "commitment to wait for (COMMITMENT)")
	pf.String("log-level", "", "log level (LOG_LEVEL)")

	cmd.AddCommand(
		cmdAirdrop(),
		cmdBalance(),
		cmdCreateToken(),
		cmdMintToken(),
		cmdMintNFT(),
		cmdCounter(),
		cmdShow(),
	)
	return cmd
}

func loadKeypair(path string) (solana.PrivateKey, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate default keypair: %w", err)
		}
		path = filepath.Join(home, ".config", "solana", "id.json")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return key, nil
}

func jsonprint(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
