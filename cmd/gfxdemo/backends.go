package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gogpu/gfx/backend"
)

func newBackendsCmd(opts *options) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List registered backends",
		Long: `List the registered backends in priority order. With --probe each
backend is initialized and its capabilities are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if !probe {
				for _, name := range backend.Available() {
					fmt.Fprintln(w, name)
				}
				return nil
			}
			fmt.Fprintln(w, "NAME\tSTATUS\tSHADERS\tMAX TEXTURE\tMSAA\tUNIFORM ALIGN\tDEPTH RESOLVE")
			for _, name := range backend.Available() {
				b, err := backend.Open(name)
				if err != nil {
					fmt.Fprintf(w, "%s\t%v\t\t\t\t\t\n", name, err)
					continue
				}
				c := b.Capabilities()
				fmt.Fprintf(w, "%s\tok\t%s\t%d\t%d\t%d\t%t\n",
					name, c.ShaderLanguage, c.MaxTextureDimension, c.MaxSampleCount,
					c.MinUniformOffsetAlignment, c.DepthResolve)
				b.Close()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "initialize each backend and print its capabilities")
	return cmd
}
