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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// printFlat renders data as one "field: value" line per map entry, or
// one bare line per slice element.
func printFlat(w io.Writer, data any) {
	switch v := data.(type) {
	case map[string]string:
		for field, value := range v {
			fmt.Fprintf(w, "%s: %s\n", field, value)
		}
	case []string:
		for _, value := range v {
			fmt.Fprintln(w, value)
		}
	}
}

// printTable renders data as a bordered two-column table for a map, or
// a bordered single-column list for a slice, matching the fixed-width
// box-drawing layout of the format it replaces.
func printTable(w io.Writer, data any, section string) {
	switch v := data.(type) {
	case map[string]string:
		widths := [2]int{8, 8}
		for field, value := range v {
			widths[0] = max(widths[0], len(field))
			widths[1] = max(widths[1], len(value))
		}
		sep := "+" + strings.Repeat("-", widths[0]+2) + "+" + strings.Repeat("-", widths[1]+2) + "+"
		fmt.Fprintln(w, sep)
		fmt.Fprintf(w, "| %-*s | %-*s |\n", widths[0], "Fields", widths[1], "Values")
		fmt.Fprintln(w, strings.ReplaceAll(sep, "-", "="))
		for field, value := range v {
			fmt.Fprintf(w, "| %-*s | %-*s |\n", widths[0], field, widths[1], value)
		}
		fmt.Fprintln(w, sep)
	case []string:
		width := max(8, len(section))
		for _, item := range v {
			width = max(width, len(item))
		}
		sep := "+" + strings.Repeat("-", width+2) + "+"
		fmt.Fprintln(w, sep)
		if section != "" {
			fmt.Fprintf(w, "| %-*s |\n", width, section)
			fmt.Fprintln(w, strings.ReplaceAll(sep, "-", "="))
		}
		for _, item := range v {
			fmt.Fprintf(w, "| %-*s |\n", width, item)
		}
		fmt.Fprintln(w, sep)
	}
}

// printFormat renders data in the requested output format. section
// names the top-level key used to wrap data for the json/yaml formats
// and the table heading; flat output ignores it.
func printFormat(w io.Writer, data any, format, section string) error {
	switch format {
	case "yaml":
		wrapped := any(data)
		if section != "" {
			wrapped = map[string]any{section: data}
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(wrapped)
	case "json":
		wrapped := any(data)
		if section != "" {
			wrapped = map[string]any{section: data}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(wrapped)
	case "flat":
		printFlat(w, data)
		return nil
	case "table":
		printTable(w, data, section)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
