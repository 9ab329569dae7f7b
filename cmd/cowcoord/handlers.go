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
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ouranosinc/syncbird/internal/fswatch"
)

func newHandlersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handlers",
		Short: "Inspect configured component handlers",
	}
	cmd.AddCommand(newHandlersListCmd(opts))
	cmd.AddCommand(newHandlersInfoCmd(opts))
	return cmd
}

func newHandlersListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known handlers",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(opts, "cowcoord")
			if err != nil {
				return err
			}
			fsRegistry := fswatch.NewRegistry(log, nullStore{})
			factory, _, err := buildFactory(opts, log, fsRegistry, nil)
			if err != nil {
				return err
			}
			active, err := factory.ActiveHandlers()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(active))
			for _, h := range active {
				names = append(names, h.Name())
			}
			sort.Strings(names)
			return printFormat(cmd.OutOrStdout(), names, opts.format, "handlers")
		},
	}
}

func newHandlersInfoCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show information about a handler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			log, err := newLogger(opts, "cowcoord")
			if err != nil {
				return err
			}
			fsRegistry := fswatch.NewRegistry(log, nullStore{})
			factory, _, err := buildFactory(opts, log, fsRegistry, nil)
			if err != nil {
				return err
			}
			h, err := factory.Get(name)
			if err != nil {
				return err
			}
			if h == nil {
				return fmt.Errorf("cannot find handler named: %s", name)
			}
			info := map[string]string{
				"name":     h.Name(),
				"active":   "true",
				"priority": strconv.FormatFloat(h.Priority(), 'g', -1, 64),
			}
			return printFormat(cmd.OutOrStdout(), info, opts.format, "handler")
		},
	}
}
