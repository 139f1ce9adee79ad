// Package state is the run-state machine (§4.I): a pure core holding one
// State per function plus the outstanding Block and flow-busy bookkeeping,
// with one method per event (ValueReceived, NewJob, JobDone, UnBlock) that
// applies a transition and returns whatever follow-on worklist it implies
// (functions to unblock, senders to release). It does not itself own input
// buffers or dispatch jobs — the dispatcher (§4.J) supplies the needed
// facts (needs_input, output_blocked) and drains the returned worklists.
package state

import "sort"

// State is one of the six states a function may be in.
type State int

const (
	Initial State = iota
	Ready
	Waiting
	Blocked
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case Ready:
		return "ready"
	case Waiting:
		return "waiting"
	case Blocked:
		return "blocked"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Block is `(blocking_function_id, blocked_function_id, blocked_input_index)`
// (spec.md "Block"): blockedFunctionID has delivered, or would deliver, a
// value into blockingFunctionID's input at blockedInputIndex, which
// already holds an undelivered value from it.
type Block struct {
	BlockingFunctionID int
	BlockedFunctionID  int
	BlockedInputIndex  int
}

// Machine holds per-function state and the outstanding blocks and
// flow-busy bookkeeping needed to compute it. crossFlowSenders maps a
// flow id to the ids of functions belonging to OTHER flows that have an
// edge into one of this flow's functions — precomputed once from the
// manifest's flow-membership and output-connection data, since the
// machine itself has no notion of the graph beyond functionID->flowID.
type Machine struct {
	states           map[int]State
	flowOf           map[int]int
	blocks           []Block
	flowBusy         map[int]bool
	crossFlowSenders map[int][]int
	flowBlocks       map[int]map[int]bool
}

// NewMachine constructs a Machine. flowOf maps every function id to the
// id of the flow that owns it; crossFlowSenders may be nil if the
// compiled graph has only one flow scope.
func NewMachine(flowOf map[int]int, crossFlowSenders map[int][]int) *Machine {
	return &Machine{
		states:           make(map[int]State),
		flowOf:           flowOf,
		flowBusy:         make(map[int]bool),
		crossFlowSenders: crossFlowSenders,
		flowBlocks:       make(map[int]map[int]bool),
	}
}

// State returns functionID's current state (Initial if never set).
func (m *Machine) State(functionID int) State { return m.states[functionID] }

// Start applies the Initial transition: impure functions with no declared
// inputs start Ready (they need nothing to begin producing); everything
// else starts Ready or Waiting depending on whether its inputs are
// already satisfied (by initializers processed before Start is called).
func (m *Machine) Start(functionID int, impure, hasInputs, needsInput bool) State {
	var s State
	switch {
	case impure && !hasInputs:
		s = Ready
	case needsInput:
		s = Waiting
	default:
		s = Ready
	}
	m.states[functionID] = s
	return s
}

// OutputBlocked reports whether functionID currently cannot be considered
// Ready because some destination still holds an undelivered value from
// it, or because a flow_block entry prevents it from sending into a busy
// flow it is external to.
func (m *Machine) OutputBlocked(functionID int) bool {
	for _, b := range m.blocks {
		if b.BlockedFunctionID == functionID {
			return true
		}
	}
	for _, blocked := range m.flowBlocks {
		if blocked[functionID] {
			return true
		}
	}
	return false
}

// AddBlock records a new outstanding block, e.g. raised by the router
// (§4.K) when a delivery targets an input that already holds a value.
func (m *Machine) AddBlock(b Block) { m.blocks = append(m.blocks, b) }

// OnValueReceived applies the ValueReceived transition: it only moves a
// function out of Waiting (a function already Ready, Blocked, Running, or
// Completed is left alone; a still-needs-input Waiting function stays
// Waiting).
func (m *Machine) OnValueReceived(functionID int, needsInput, outputBlocked bool) State {
	if m.states[functionID] != Waiting {
		return m.states[functionID]
	}
	switch {
	case !needsInput && !outputBlocked:
		m.states[functionID] = Ready
	case !needsInput && outputBlocked:
		m.states[functionID] = Blocked
	}
	return m.states[functionID]
}

// OnNewJob applies the NewJob transition: Ready→Running, marks the owning
// flow busy (raising new flow_block entries against external senders the
// first time the flow becomes busy), and releases any block naming
// functionID as the blocking destination — returning the producer
// function ids that should now receive an UnBlock event.
func (m *Machine) OnNewJob(functionID int) []int {
	m.states[functionID] = Running

	flowID, hasFlow := m.flowOf[functionID]
	if hasFlow {
		if !m.flowBusy[flowID] {
			m.flowBusy[flowID] = true
			if len(m.crossFlowSenders[flowID]) > 0 {
				blocked := make(map[int]bool, len(m.crossFlowSenders[flowID]))
				for _, sender := range m.crossFlowSenders[flowID] {
					blocked[sender] = true
				}
				m.flowBlocks[flowID] = blocked
			}
		}
	}

	var unblocked []int
	kept := m.blocks[:0]
	for _, b := range m.blocks {
		if b.BlockingFunctionID == functionID {
			unblocked = append(unblocked, b.BlockedFunctionID)
			continue
		}
		kept = append(kept, b)
	}
	m.blocks = kept
	return unblocked
}

// OnJobDone applies the JobDone transition: Running→Completed if the job
// reported !runAgain, else Running→{Waiting|Blocked|Ready} per the
// current state variables.
func (m *Machine) OnJobDone(functionID int, runAgain, needsInput, outputBlocked bool) State {
	if !runAgain {
		m.states[functionID] = Completed
		return Completed
	}
	switch {
	case needsInput:
		m.states[functionID] = Waiting
	case outputBlocked:
		m.states[functionID] = Blocked
	default:
		m.states[functionID] = Ready
	}
	return m.states[functionID]
}

// OnUnblock applies the UnBlock transition: Blocked→Ready if the function
// no longer needs input and is no longer output_blocked.
func (m *Machine) OnUnblock(functionID int, needsInput, outputBlocked bool) State {
	if m.states[functionID] != Blocked {
		return m.states[functionID]
	}
	if !needsInput && !outputBlocked {
		m.states[functionID] = Ready
	}
	return m.states[functionID]
}

// SettleFlow checks whether every function in members (flowID's own
// functions) is now non-Running and non-Ready; if so and the flow was
// busy, it clears the flow's busy flag and its accumulated flow_block
// entries, returning the (sorted, for determinism) sender function ids
// that should now receive an UnBlock event. Returns nil if the flow was
// not busy or is not yet idle.
func (m *Machine) SettleFlow(flowID int, members []int) []int {
	if !m.flowBusy[flowID] {
		return nil
	}
	for _, fid := range members {
		switch m.states[fid] {
		case Running, Ready:
			return nil
		}
	}
	m.flowBusy[flowID] = false
	blocked := m.flowBlocks[flowID]
	delete(m.flowBlocks, flowID)
	if len(blocked) == 0 {
		return nil
	}
	senders := make([]int, 0, len(blocked))
	for id := range blocked {
		senders = append(senders, id)
	}
	sort.Ints(senders)
	return senders
}
