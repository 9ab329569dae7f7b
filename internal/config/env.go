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

package config

import (
	"os"
	"strings"
)

// EnvPrefix is the prefix every settings-binding environment variable
// must carry, e.g. X_LOG_LEVEL binds to settings key "x.log_level".
const EnvPrefix = "X_"

// Settings is a flat map of dotted keys to string values, populated
// from the process environment using the X_FOO_BAR -> x.foo_bar scheme.
type Settings map[string]string

// LoadSettingsFromEnv scans the process environment for variables
// carrying EnvPrefix and returns them as dotted settings keys.
func LoadSettingsFromEnv() Settings {
	out := Settings{}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key := "x." + strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		out[key] = value
	}
	return out
}

// Defaults the minimal settings keys consulted by the rest of the
// system: log level, config path, ini path.
const (
	SettingLogLevel   = "x.log_level"
	SettingConfigPath = "x.config_path"
	SettingINIPath    = "x.ini_path"
)

// GetOrDefault returns the settings value for key, or def if unset.
func (s Settings) GetOrDefault(key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}
