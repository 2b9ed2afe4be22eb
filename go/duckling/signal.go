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

package duckling

import (
	"os"

	"github.com/duckling-db/duckling/go/common/cancel"
)

// InterruptOnSignal turns the given signals (os.Interrupt if none) into
// conn.Interrupt() until the returned stop function is called. A query
// running when the signal arrives fails with "Query interrupted" and the
// process keeps running.
func InterruptOnSignal(conn *Conn, sigs ...os.Signal) (stop func()) {
	return cancel.Notify(conn, conn.logger, sigs...)
}
