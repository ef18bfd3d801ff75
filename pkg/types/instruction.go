package types

import "time"

// InstructionState is the execution state of an instruction.
type InstructionState string

const (
	InstructionStateQueued    InstructionState = "Queued"
	InstructionStateExecuting InstructionState = "Executing"
	InstructionStateCompleted InstructionState = "Completed"
	InstructionStateDeclined  InstructionState = "Declined"
)

// Terminal returns true for Completed and Declined.
func (s InstructionState) Terminal() bool {
	return s == InstructionStateCompleted || s == InstructionStateDeclined
}

// TopicSetControlParameter asks for the control identified by each parameter
// name to be set to the parameter value.
const TopicSetControlParameter = "SetControlParameter"

// Instruction is a directive to change the state of a controllable point.
type Instruction struct {
	ID               int64             `json:"id"`
	NodeID           int64             `json:"nodeId"`
	Topic            string            `json:"topic"`
	Parameters       map[string]string `json:"parameters,omitempty"`
	State            InstructionState  `json:"state"`
	Created          time.Time         `json:"created"`
	StatusDate       time.Time         `json:"statusDate"`
	ResultParameters map[string]any    `json:"resultParameters,omitempty"`
}

// InstructionStatus is the outcome of executing an instruction.
type InstructionStatus struct {
	InstructionID    int64            `json:"instructionId"`
	State            InstructionState `json:"state"`
	StatusDate       time.Time        `json:"statusDate"`
	ResultParameters map[string]any   `json:"resultParameters,omitempty"`
}

// AuditEvent is an immutable record appended to a user's event log.
type AuditEvent struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Tags      []string       `json:"tags"`
	Data      map[string]any `json:"data"`
}
