// Copyright 2026 fanjia1024
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

package pipeline

import "context"

// Phase 结算阶段
type Phase string

const (
	PhasePreCapture     Phase = "PRE_CAPTURE"
	PhaseHoldEvaluation Phase = "HOLD_EVALUATION"
	PhaseCapture        Phase = "CAPTURE"
	PhasePostCapture    Phase = "POST_CAPTURE"
	PhaseFinalize       Phase = "FINALIZE"
)

// settled 捕获完成后不可再回滚的阶段
func (p Phase) settled() bool {
	return p == PhasePreCapture || p == PhaseCapture
}

// ActionFunc 步骤的执行/回滚/失败钩子
type ActionFunc func(ctx context.Context, cc *Context) error

// Step 结算步骤记录。Rollback 为 nil 的步骤在回滚时跳过；
// OnOrderFailure 仅 POST_CAPTURE 步骤使用，在本阶段失败后调用。
type Step struct {
	Name           string
	Phase          Phase
	Execute        ActionFunc
	Rollback       ActionFunc
	OnOrderFailure ActionFunc
}

// Reversible 是否带回滚
func (s Step) Reversible() bool {
	return s.Rollback != nil
}
