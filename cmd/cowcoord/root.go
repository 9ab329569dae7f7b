/*
SPDX-License-Identifier: Apache-2.0

Copyright 2025 Ouranosinc

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/ouranosinc/syncbird/internal/logging"
)

const defaultConfigPath = "/etc/syncbird/config.yaml"

// rootOptions holds the flags shared by every subcommand: the
// configuration location, the output format for introspection commands,
// and the mutually-exclusive log-verbosity flags.
type rootOptions struct {
	configPath string
	format     string
	quiet      bool
	debug      bool
	level      string
}

// logLevel resolves the three mutually-exclusive verbosity flags down
// to a single level string understood by internal/logging.
func (o *rootOptions) logLevel() string {
	switch {
	case o.quiet:
		return logging.LevelQuiet
	case o.debug:
		return logging.LevelDebug
	case o.level != "":
		return o.level
	default:
		return logging.LevelInfo
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "cowcoord",
		Short:        "Coordination engine for propagating user and permission lifecycle events across components",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateRootOptions(opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "configuration file or directory to load")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "json", "output format of introspection commands: flat|json|yaml|table")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress informative logging")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.level, "level", "l", "", "explicit log level: debug|info|warn|error")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newHandlersCmd(opts))
	return root
}

func validateRootOptions(opts *rootOptions) error {
	exclusive := 0
	for _, set := range []bool{opts.quiet, opts.debug, opts.level != ""} {
		if set {
			exclusive++
		}
	}
	if exclusive > 1 {
		return fmt.Errorf("-q/--quiet, -d/--debug and -l/--level are mutually exclusive")
	}
	switch opts.format {
	case "flat", "json", "yaml", "table":
	default:
		return fmt.Errorf("unsupported output format %q, expected one of flat|json|yaml|table", opts.format)
	}
	return nil
}

func newLogger(opts *rootOptions, name string) (logr.Logger, error) {
	return logging.New(name, opts.logLevel())
}
