// Copyright 2025 The LLMSpell Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"time"
)

// NoopMetrics is the Metrics implementation GetGlobalMetrics falls back to
// before SetGlobalMetrics has been called, so every RecordXxx call site can
// skip a nil check.
type NoopMetrics struct{}

func (NoopMetrics) RecordToolExecution(_ context.Context, _ string, _ time.Duration, _ error)     {}
func (NoopMetrics) RecordHookDispatch(_ context.Context, _, _ string, _ time.Duration, _ string)  {}
func (NoopMetrics) RecordAccessDecision(_ context.Context, _, _ string, _ bool)                   {}
func (NoopMetrics) RecordGraphQuery(_ context.Context, _ string, _ time.Duration, _ error)        {}
func (NoopMetrics) RecordResourceUsage(_ context.Context, _ string, _ int64, _ int64)              {}

var _ Metrics = NoopMetrics{}
