package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/catalog"
	"github.com/effective-security/toolloop/encoding"
	"github.com/spf13/cobra"
)

type toolList struct {
	Tools []*catalog.ToolDescriptor `json:"tools" yaml:"tools" toml:"tools"`
}

func (a *app) toolsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools of the tool-server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			connector, err := a.newConnector(cfg)
			if err != nil {
				return err
			}

			ts, err := connector.Connect(cmd.Context())
			if err != nil {
				return err
			}
			defer ts.Close()

			cat, err := ts.ListTools(cmd.Context())
			if err != nil {
				return err
			}

			if !strings.EqualFold(format, encoding.ModeText) {
				enc, err := encoding.PredefinedEncoder(format)
				if err != nil {
					return err
				}
				bs, err := enc.Marshal(&toolList{Tools: cat.Tools()})
				if err != nil {
					return errors.Wrap(err, "failed to encode")
				}
				_, err = cmd.OutOrStdout().Write(bs)
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "NAME\tPARAMETERS\tDESCRIPTION\n")
			for _, td := range cat.Tools() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", td.Name, td.Signature(), td.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", encoding.ModeText, "output format: "+strings.Join(encoding.Modes, ", "))
	return cmd
}
