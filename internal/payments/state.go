/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package payments

import (
	"go.uber.org/zap"
)

// State is the stage a payment run has reached.
type State int

const (
	StateValidating State = iota
	StateCollectingAllowances
	StateAllocating
	StateExecutingTransfers
	StateRecording
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateCollectingAllowances:
		return "collecting_allowances"
	case StateAllocating:
		return "allocating"
	case StateExecutingTransfers:
		return "executing_transfers"
	case StateRecording:
		return "recording"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// Observer is notified on every state change of a run.
type Observer func(runId string, from, to State)

type run struct {
	id       string
	state    State
	observer Observer
	log      *zap.Logger
}

func (r *run) advance(to State) {
	if r.state.Terminal() {
		return
	}
	from := r.state
	r.state = to
	r.log.Debug("Payment state changed",
		zap.String("from", from.String()),
		zap.String("to", to.String()))
	if r.observer != nil {
		r.observer(r.id, from, to)
	}
}

// abort moves the run to StateAborted and hands err back for returning.
func (r *run) abort(err error) error {
	r.log.Warn("Payment aborted",
		zap.String("state", r.state.String()),
		zap.Error(err))
	r.advance(StateAborted)
	return err
}
