package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List segmentation runs",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}

	cmd.Flags().Bool("json", false, "Output in JSON format")

	return cmd
}

func runRuns(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.close()

	runs, err := e.st.Runs().List()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs yet")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %-10s  %6d frames  %s\n", r.ID, r.Status, r.FrameCount, r.VideoPath)
	}
	return nil
}
