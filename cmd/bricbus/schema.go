package main

import (
	"github.com/casualjim/bricbus/wire"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	var legacy bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the message envelope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema := wire.Schema()
			if legacy {
				schema = wire.LegacySchema()
			}
			b, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return err
			}
			b = append(b, '\n')
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy", false, "print the legacy messageType envelope instead")
	return cmd
}
