package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newExecCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
		explain bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute one statement and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRunner(addr, timeout)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			out := cmd.OutOrStdout()
			if explain {
				plan, err := r.Explain(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, plan)
				return nil
			}

			res, err := r.Exec(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(out, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "server address; empty runs in-process")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "dial and request timeout")
	cmd.Flags().BoolVar(&explain, "explain", false, "print the plan instead of running")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
