package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"solana-issuance-lab/internal/client"
	"solana-issuance-lab/internal/idl"
)

func cmdAirdrop() *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop <sol>",
		Short: "Request SOL for the payer from the validator faucet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := unwrap(cmd)
			lamports, err := client.ParseUIAmount(args[0], 9)
			if err != nil {
				return err
			}
			sig, err := s.client.Airdrop(cmd.Context(), lamports)
			if err != nil {
				return err
			}
			balance, err := s.client.Balance(cmd.Context(), s.client.Payer())
			if err != nil {
				return err
			}
			return jsonprint(cmd, map[string]string{
				"signature": sig.String(),
				"payer":     s.client.Payer().String(),
				"balance":   client.Lamports(balance).String(),
			})
		},
	}
}

func cmdBalance() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the SOL balance of an address, the payer by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := unwrap(cmd)
			key := s.client.Payer()
			if len(args) == 1 {
				var err error
				if key, err = solana.PublicKeyFromBase58(args[0]); err != nil {
					return fmt.Errorf("invalid address: %w", err)
				}
			}
			balance, err := s.client.Balance(cmd.Context(), key)
			if err != nil {
				return err
			}
			return jsonprint(cmd, map[string]string{
				"address": key.String(),
				"balance": client.Lamports(balance).String(),
			})
		},
	}
}

func cmdCreateToken() *cobra.Command {
	var params idl.CreateTokenParams
	cmd := &cobra.Command{
		Use:   "create-token",
		Short: "Create the fungible class and its metadata record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := unwrap(cmd).client.CreateToken(cmd.Context(), params)
			if err != nil {
				return err
			}
			return jsonprint(cmd, map[string]string{
				"signature": res.Signature.String(),
				"mint":      res.Mint.String(),
				"metadata":  res.Metadata.String(),
			})
		},
	}
	cmd.Flags().StringVar(&params.Name, "name", "", "token name")
	cmd.Flags().StringVar(&params.Symbol, "symbol", "", "token symbol")
	cmd.Flags().StringVar(&params.URI, "uri", "", "metadata URI")
	cmd.Flags().Uint8Var(&params.Decimals, "decimals", 9, "decimal places")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func cmdMintToken() *cobra.Command {
	var recipient string
	cmd := &cobra.Command{
		Use:   "mint-token <amount>",
		Short: "Mint units of the fungible class; amount is in whole tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := unwrap(cmd)
			ctx := cmd.Context()

			var to solana.PublicKey
			if recipient != "" {
				var err error
				if to, err = solana.PublicKeyFromBase58(recipient); err != nil {
					return fmt.Errorf("invalid recipient: %w", err)
				}
			}

			mintKey, _, err := idl.FindMintAddress()
			if err != nil {
				return err
			}
			mint, err := s.client.FetchMint(ctx, mintKey)
			if err != nil {
				return fmt.Errorf("read mint (run create-token first): %w", err)
			}
			amount, err := client.ParseUIAmount(args[0], mint.Decimals)
			if err != nil {
				return err
			}

			res, err := s.client.MintToken(ctx, amount, to)
			if err != nil {
				return err
			}
			holder, err := s.client.FetchTokenAccount(ctx, res.Destination)
			if err != nil {
				return err
			}
			return jsonprint(cmd, map[string]string{
				"signature":   res.Signature.String(),
				"destination": res.Destination.String(),
				"balance":     client.UIAmount(holder.Amount, mint.Decimals).String(),
			})
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "owner of the receiving holder account; the payer by default")
	return cmd
}

func cmdMintNFT() *cobra.Command {
	var params idl.MintNFTParams
	cmd := &cobra.Command{
		Use:   "mint-nft",
		Short: "Mint a unique asset to the payer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := unwrap(cmd).client.MintNFT(cmd.Context(), params)
			if err != nil {
				return err
			}
			return jsonprint(cmd, map[string]string{
				"signature":   res.Signature.String(),
				"mint":        res.Mint.String(),
				"metadata":    res.Metadata.String(),
				"destination": res.Destination.String(),
			})
		},
	}
	cmd.Flags().StringVar(&params.Name, "name", "", "asset name")
	cmd.Flags().StringVar(&params.Symbol, "symbol", "", "asset symbol")
	cmd.Flags().StringVar(&params.URI, "uri", "", "metadata URI")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func cmdCounter() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Drive the counter module",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create a counter under a fresh keypair",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				key, sig, err := unwrap(cmd).client.InitializeCounter(cmd.Context())
				if err != nil {
					return err
				}
				return jsonprint(cmd, map[string]string{
					"signature": sig.String(),
					"counter":   key.String(),
				})
			},
		},
		&cobra.Command{
			Use:   "increment <counter>",
			Short: "Add one to a counter",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s := unwrap(cmd)
				key, err := solana.PublicKeyFromBase58(args[0])
				if err != nil {
					return fmt.Errorf("invalid counter: %w", err)
				}
				sig, err := s.client.Increment(cmd.Context(), key)
				if err != nil {
					return err
				}
				rec, err := s.client.FetchCounter(cmd.Context(), key)
				if err != nil {
					return err
				}
				return jsonprint(cmd, map[string]interface{}{
					"signature": sig.String(),
					"count":     rec.Count,
				})
			},
		},
	)
	return cmd
}

func cmdShow() *cobra.Command {
	return &cobra.Command{
		Use:       "show <mint|account|metadata|counter> <address>",
		Short:     "Fetch and decode a record; metadata takes the mint address",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"mint", "account", "metadata", "counter"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s := unwrap(cmd)
			ctx := cmd.Context()
			key, err := solana.PublicKeyFromBase58(args[1])
			if err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}

			var rec interface{}
			switch args[0] {
			case "mint":
				rec, err = s.client.FetchMint(ctx, key)
			case "account":
				rec, err = s.client.FetchTokenAccount(ctx, key)
			case "metadata":
				rec, err = s.client.FetchMetadata(ctx, key)
			case "counter":
				rec, err = s.client.FetchCounter(ctx, key)
			default:
				return fmt.Errorf("unknown record kind %q", args[0])
			}
			if err != nil {
				return err
			}
			return jsonprint(cmd, rec)
		},
	}
}
