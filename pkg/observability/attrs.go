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
package observability

// Standard span and event attribute names used across the pipeline
// components. Collected here for consistency between Detector, Buffer,
// Controller, and History instrumentation.
const (
	// Session context
	AttrSessionID = "session.id"

	// Detection attributes
	AttrPatternName       = "pattern.name"
	AttrPatternConfidence = "pattern.confidence"
	AttrDetectorStrategy  = "detector.strategy"
	AttrStepType          = "step.type"
	AttrStepID            = "step.id"
	AttrTransitionKind    = "step.transition"

	// Buffer attributes
	AttrBufferMessageCount = "buffer.message_count"
	AttrBufferByteSize     = "buffer.byte_size"

	// Controller attributes
	AttrControlMode       = "control.mode"
	AttrControlDecision   = "control.decision"
	AttrInterventionCount = "intervention.count"

	// History attributes
	AttrCheckpointName = "checkpoint.name"
	AttrConversationID = "conversation.id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Standard metric names.
const (
	MetricStepsDetected      = "step.detected.count"
	MetricStepDuration       = "step.duration_ms"
	MetricBufferFlushLatency = "buffer.flush.latency_ms"
	MetricReviewLatency      = "control.review.latency_ms"
	MetricPruneCount         = "history.prune.count"
)
