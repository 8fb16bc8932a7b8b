package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newCreditsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credits <user-id> <count|unlimited>",
		Short: "Sets a profile's application credit balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			credits, err := parseCredits(args[1])
			if err != nil {
				return err
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return appInstance.SetCredits(cmd.Context(), args[0], credits)
		},
	}
}

// parseCredits reads a non-negative balance; "unlimited" maps to nil.
func parseCredits(raw string) (*int, error) {
	if strings.EqualFold(raw, "unlimited") {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("credits must be a non-negative integer or \"unlimited\", got %q", raw)
	}
	return &n, nil
}
