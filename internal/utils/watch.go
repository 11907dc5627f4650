// Copyright 2025 AltAuthor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package utils

import (
	"github.com/fsnotify/fsnotify"

	"github.com/artechne/altauthor/internal/log"
)

// WatchFile invokes fn whenever path is written or recreated. The watcher
// runs for the life of the process; errors are logged, never fatal.
func WatchFile(path string, fn func(op fsnotify.Op, file string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				fn(ev.Op, ev.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("watch %s: %v", path, err)
			}
		}
	}()
	return nil
}
