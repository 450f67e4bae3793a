package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flybeeper/efb-backend/internal/metar"
	"github.com/spf13/cobra"
)

func newMetarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metar <raw METAR>",
		Short: "Parse a raw METAR report and print wind, temperature and QNH",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := metar.Parse(strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("parse metar: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(record)
		},
	}
}
