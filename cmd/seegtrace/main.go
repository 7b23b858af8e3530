// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command seegtrace reads an sEEG recording in any supported format and
// prints a summary of the canonical signal and trigger view.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openseeg/seegio"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	var logger *zap.Logger

	cmd := &cobra.Command{
		Use:           "seegtrace",
		Short:         "Normalize sEEG recordings into a common signal and trigger view",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if verbose {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			if err != nil {
				return fmt.Errorf("error building logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(&cobra.Command{
		Use:   "trc <file>",
		Short: "Read a Micromed TRC container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := seegio.NewTRCReader(nil, logger).Read(args[0])
			if err != nil {
				return err
			}
			printSummary(cmd, rec)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "matdir <dir>",
		Short: "Read a matrix-file recording directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := seegio.NewMatDirReader(logger).Read(args[0])
			if err != nil {
				return err
			}
			printSummary(cmd, rec)
			return nil
		},
	})

	return cmd
}

func printSummary(cmd *cobra.Command, rec *seegio.Recording) {
	rows, cols := rec.Raw.Dims()
	cmd.Printf("sampling rate: %g Hz\n", rec.SamplingRate)
	cmd.Printf("seeg channels: %d (%d samples each)\n", rows, cols)
	for _, name := range rec.ChannelNames {
		cmd.Printf("  %s\n", name)
	}
	cmd.Printf("trigger events: %d\n", len(rec.TriggerEvents))
	for i, code := range rec.TriggerEvents {
		cmd.Printf("  code %d at %.4fs\n", code, rec.TriggerTimes[i])
	}
}
