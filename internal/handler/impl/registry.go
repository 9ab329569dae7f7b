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

package impl

import (
	"github.com/go-logr/logr"

	"github.com/ouranosinc/syncbird/internal/fswatch"
	"github.com/ouranosinc/syncbird/internal/handler"
	"github.com/ouranosinc/syncbird/internal/metrics"
	"github.com/ouranosinc/syncbird/internal/model"
	"github.com/ouranosinc/syncbird/internal/syncpoint"
)

// Kind names under which each adapter constructor is recognized by the
// handler factory's `handlers:` configuration section.
const (
	KindFileSystem = "filesystem"
	KindMagpie     = "magpie"
	KindGeoserver  = "geoserver"
	KindNginx      = "nginx"
	KindThredds    = "thredds"
	KindCatalog    = CatalogKind
	KindDatashare  = DatashareKind
)

// NewRegistry builds the handler.Registry binding every recognized
// component kind to its constructor, closing over the dependencies each
// adapter needs beyond its own HandlerConfig: the shared logger, the
// filesystem monitor registry, the sync-point synchronizer that Magpie
// propagates permission events through, and the Metrics instance
// Geoserver attaches to its internal task runner. m may be nil, in which
// case every adapter built here simply records no metrics.
func NewRegistry(log logr.Logger, fsRegistry *fswatch.Registry, synchronizer *syncpoint.Synchronizer, m *metrics.Metrics) handler.Registry {
	return handler.Registry{
		KindFileSystem: func(name string, cfg model.HandlerConfig) (handler.Handler, error) {
			return NewFileSystem(log, name, FileSystemConfig{
				HandlerConfig:       cfg,
				NotebookUserDataDir: cfg.Extra["notebook_user_data_dir"],
			})
		},
		KindMagpie: func(name string, cfg model.HandlerConfig) (handler.Handler, error) {
			return NewMagpie(log, name, cfg, synchronizer)
		},
		KindGeoserver: func(name string, cfg model.HandlerConfig) (handler.Handler, error) {
			return NewGeoserver(log, name, cfg, fsRegistry, m)
		},
		KindNginx: func(name string, cfg model.HandlerConfig) (handler.Handler, error) {
			return NewNginx(log, name, cfg)
		},
		KindThredds: func(name string, cfg model.HandlerConfig) (handler.Handler, error) {
			return NewThredds(log, name, cfg)
		},
		KindCatalog: func(name string, cfg model.HandlerConfig) (handler.Handler, error) {
			return NewCatalog(log, name, cfg, fsRegistry)
		},
		KindDatashare: func(name string, cfg model.HandlerConfig) (handler.Handler, error) {
			return NewDatashare(log, name, cfg, fsRegistry)
		},
	}
}
