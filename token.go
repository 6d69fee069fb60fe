package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	tokenCustomerID uint
	tokenEmail      string
)

// tokenCmd issues access tokens for operators and integration tests, since
// customer login is served by a separate identity service
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for a customer",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().UintVar(&tokenCustomerID, "customer-id", 0, "Customer ID to embed in the token")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Customer email, used for payment receipts")
	_ = tokenCmd.MarkFlagRequired("customer-id")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}
	if tokenCustomerID == 0 {
		return fmt.Errorf("customer-id must be positive")
	}

	tokens, err := newTokenService(cfg)
	if err != nil {
		return err
	}

	token, err := tokens.GenerateAccessToken(tokenCustomerID, tokenEmail)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
