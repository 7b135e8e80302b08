package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var checkOnly bool

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download and extract the latest chromedriver release",
		Long: `Resolves the latest chromedriver release and extracts its archive into the
working directory. Existing files are overwritten; nothing is patched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			prov, err := newDriver(cfg).Provisioner()
			if err != nil {
				return err
			}

			if checkOnly {
				version, err := prov.LatestRelease(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			}

			version, err := prov.Download(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chromedriver %s extracted to %s\n", version, prov.Binary().RawPath())
			return nil
		},
	}

	fetchCmd.Flags().BoolVar(&checkOnly, "check", false, "only print the latest release identifier")
	return fetchCmd
}
