// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pattern

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/agentstep/pipeline/internal/fsext"
	"github.com/agentstep/pipeline/pkg/observability"
)

// UpdateCallback is invoked after a hot-reload attempt, successful or not.
type UpdateCallback func(event, path string, err error)

// HotReloadConfig configures a HotReloader.
type HotReloadConfig struct {
	Enabled    bool
	DebounceMs int
	Logger     *zap.Logger
	OnUpdate   UpdateCallback
	Tracer     observability.Tracer
}

// HotReloader watches a directory of pattern-set YAML files and reloads a
// Library whenever one changes, without tearing down Detectors holding a
// reference to that Library.
type HotReloader struct {
	library *Library
	dir     string
	watcher *fsnotify.Watcher
	config  HotReloadConfig
	logger  *zap.Logger
	tracer  observability.Tracer

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	stopMu  sync.Mutex
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHotReloader creates a hot-reloader watching dir for changes to apply
// to library.
func NewHotReloader(library *Library, dir string, config HotReloadConfig) (*HotReloader, error) {
	if dir == "" {
		return nil, fmt.Errorf("pattern: hot-reload requires a patterns directory")
	}
	if config.Enabled && !fsext.IsDir(dir) {
		return nil, fmt.Errorf("pattern: hot-reload directory %q does not exist", dir)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Tracer == nil {
		config.Tracer = observability.NewNoOpTracer()
	}
	if config.DebounceMs == 0 {
		config.DebounceMs = 500
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("pattern: create watcher: %w", err)
	}

	return &HotReloader{
		library:        library,
		dir:            dir,
		watcher:        watcher,
		config:         config,
		logger:         config.Logger,
		tracer:         config.Tracer,
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}, nil
}

// Start begins watching the patterns directory. No-op if disabled.
func (hr *HotReloader) Start(ctx context.Context) error {
	if !hr.config.Enabled {
		hr.logger.Info("pattern hot-reload disabled")
		return nil
	}

	if err := hr.watcher.Add(hr.dir); err != nil {
		return fmt.Errorf("pattern: watch %s: %w", hr.dir, err)
	}

	hr.logger.Info("pattern hot-reload started",
		zap.String("dir", hr.dir),
		zap.Int("debounce_ms", hr.config.DebounceMs))

	go hr.watchLoop(ctx)
	return nil
}

func (hr *HotReloader) watchLoop(ctx context.Context) {
	defer close(hr.doneCh)

	for {
		select {
		case event, ok := <-hr.watcher.Events:
			if !ok {
				return
			}
			hr.handleEvent(event)

		case err, ok := <-hr.watcher.Errors:
			if !ok {
				return
			}
			hr.logger.Error("pattern watcher error", zap.Error(err))

		case <-hr.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (hr *HotReloader) handleEvent(event fsnotify.Event) {
	switch fsext.Ext(event.Name) {
	case ".yaml", ".yml":
	default:
		return
	}

	hr.debounce(event.Name, func() {
		hr.reload(event.Name)
	})
}

func (hr *HotReloader) debounce(key string, fn func()) {
	hr.debounceMu.Lock()
	defer hr.debounceMu.Unlock()

	if t, ok := hr.debounceTimers[key]; ok {
		t.Stop()
	}
	delay := time.Duration(hr.config.DebounceMs) * time.Millisecond
	hr.debounceTimers[key] = time.AfterFunc(delay, func() {
		fn()
		hr.debounceMu.Lock()
		delete(hr.debounceTimers, key)
		hr.debounceMu.Unlock()
	})
}

func (hr *HotReloader) reload(path string) {
	_, span := hr.tracer.StartSpan(context.Background(), "pattern.hotreload.reload")
	defer hr.tracer.EndSpan(span)
	span.SetAttribute("pattern.file", path)

	patterns, err := LoadFile(path)
	if err != nil {
		hr.logger.Error("pattern reload failed validation", zap.String("file", path), zap.Error(err))
		span.RecordError(err)
		hr.tracer.RecordMetric("pattern.hotreload.reload", 1, map[string]string{"result": "invalid"})
		if hr.config.OnUpdate != nil {
			hr.config.OnUpdate("invalid", path, err)
		}
		return
	}

	if err := hr.library.Reload(patterns); err != nil {
		hr.logger.Error("pattern reload failed install", zap.String("file", path), zap.Error(err))
		span.RecordError(err)
		hr.tracer.RecordMetric("pattern.hotreload.reload", 1, map[string]string{"result": "install_failed"})
		if hr.config.OnUpdate != nil {
			hr.config.OnUpdate("install_failed", path, err)
		}
		return
	}

	hr.logger.Info("pattern set reloaded", zap.String("file", path), zap.Int("pattern_count", len(patterns)))
	hr.tracer.RecordMetric("pattern.hotreload.reload", 1, map[string]string{"result": "success"})
	if hr.config.OnUpdate != nil {
		hr.config.OnUpdate("reload", path, nil)
	}
}

// Stop stops the watcher. Idempotent.
func (hr *HotReloader) Stop() error {
	hr.stopMu.Lock()
	defer hr.stopMu.Unlock()
	if hr.stopped {
		return nil
	}
	hr.stopped = true

	if !hr.config.Enabled {
		return nil
	}

	close(hr.stopCh)
	select {
	case <-hr.doneCh:
	case <-time.After(5 * time.Second):
		hr.logger.Warn("pattern hot-reload stop timed out")
	}
	return hr.watcher.Close()
}
