package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ghostdriver/internal/config"
	"github.com/xkilldash9x/ghostdriver/internal/patcher"
)

// patchResult is what `patch --json` prints.
type patchResult struct {
	Raw     string          `json:"raw"`
	Patched string          `json:"patched"`
	Ready   bool            `json:"ready"`
	Report  *patcher.Report `json:"report,omitempty"`
}

func newPatchCmd() *cobra.Command {
	var (
		asJSON bool
		force  bool
	)

	patchCmd := &cobra.Command{
		Use:   "patch",
		Short: "Provision chromedriver and write the patched copy without launching it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			return runPatch(cmd.Context(), cmd.OutOrStdout(), cfg, asJSON, force)
		},
	}

	patchCmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	patchCmd.Flags().BoolVar(&force, "force", false, "discard an existing patched executable and patch again")
	return patchCmd
}

func runPatch(ctx context.Context, out io.Writer, cfg config.Interface, asJSON, force bool) error {
	prov, err := newDriver(cfg).Provisioner()
	if err != nil {
		return err
	}

	if force {
		if err := os.Remove(prov.Binary().PatchedPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove patched executable: %w", err)
		}
	}

	bin, err := prov.Ensure(ctx)
	if err != nil {
		return err
	}

	result := patchResult{
		Raw:     bin.RawPath(),
		Patched: bin.PatchedPath(),
		Ready:   bin.Patched,
		Report:  bin.Report,
	}
	if asJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	switch {
	case !result.Ready:
		fmt.Fprintf(out, "patched executable was not written: %s\n", result.Patched)
	case result.Report == nil:
		fmt.Fprintf(out, "already patched: %s\n", result.Patched)
	default:
		fmt.Fprintf(out, "patched %d cdc marker(s): %s\n", result.Report.Patched, result.Patched)
	}
	return nil
}
