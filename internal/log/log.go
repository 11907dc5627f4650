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

// Package log is a minimal leveled logger over the standard library.
// All pipeline stages log through it so verbosity is controlled in one place.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var (
	level  atomic.Int32
	logger atomic.Pointer[log.Logger]
)

func init() {
	level.Store(int32(InfoLevel))
	logger.Store(log.New(os.Stderr, "", log.LstdFlags))
}

// SetLogLevel sets the minimum level that will be emitted.
func SetLogLevel(l Level) {
	level.Store(int32(l))
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	logger.Store(log.New(w, "", log.LstdFlags))
}

func output(l Level, tag, format string, args ...interface{}) {
	if int32(l) < level.Load() {
		return
	}
	logger.Load().Output(3, tag+" "+fmt.Sprintf(format, args...))
}

func Debug(format string, args ...interface{}) {
	output(DebugLevel, "[DEBUG]", format, args...)
}

func Info(format string, args ...interface{}) {
	output(InfoLevel, "[INFO]", format, args...)
}

func Warn(format string, args ...interface{}) {
	output(WarnLevel, "[WARN]", format, args...)
}

func Error(format string, args ...interface{}) {
	output(ErrorLevel, "[ERROR]", format, args...)
}
