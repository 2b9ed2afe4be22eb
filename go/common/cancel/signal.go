// Copyright 2025 Supabase, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cancel

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
)

// Interrupter is anything that can abort its currently running execution.
// Interrupt returns false when nothing was running.
type Interrupter interface {
	Interrupt() bool
}

// Notify relays the given signals (os.Interrupt if none) to target for as
// long as the returned stop function has not been called. While Notify is
// active the signals no longer terminate the process.
func Notify(target Interrupter, logger *slog.Logger, sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case sig := <-ch:
				if target.Interrupt() {
					logger.Info("interrupting running query", "signal", sig.String())
				} else {
					logger.Debug("signal received with no running query", "signal", sig.String())
				}
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
			wg.Wait()
		})
	}
}
