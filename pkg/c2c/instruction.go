package c2c

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raterudder/c2c/pkg/log"
	"github.com/raterudder/c2c/pkg/types"
)

// ResultMessageKey is the result parameter that carries the reason an
// instruction was declined.
const ResultMessageKey = "message"

// controlWriter sets the value of a provider control.
type controlWriter func(ctx context.Context, config types.IntegrationConfiguration, control types.ControlConfiguration, value string) error

// executeInstruction dispatches instruction on its topic. write may be nil
// for providers that cannot change controls.
func executeInstruction(
	ctx context.Context,
	now time.Time,
	config types.IntegrationConfiguration,
	control types.ControlConfiguration,
	instruction types.Instruction,
	write controlWriter,
) types.InstructionStatus {
	switch instruction.Topic {
	case types.TopicSetControlParameter:
		value, ok := instruction.Parameters[control.ControlID]
		if !ok {
			return declined(instruction, now, fmt.Sprintf("missing %s parameter", control.ControlID))
		}
		if write == nil {
			return declined(instruction, now, fmt.Sprintf("%s does not support control writes", config.ServiceIdentifier))
		}
		if err := write(ctx, config, control, value); err != nil {
			log.Ctx(ctx).WarnContext(
				ctx,
				"failed to set control parameter",
				slog.String("controlId", control.ControlID),
				slog.Any("error", err),
			)
			return declined(instruction, now, err.Error())
		}
		return types.InstructionStatus{
			InstructionID: instruction.ID,
			State:         types.InstructionStateCompleted,
			StatusDate:    now,
		}
	default:
		return declined(instruction, now, fmt.Sprintf("unsupported topic %q", instruction.Topic))
	}
}

func declined(instruction types.Instruction, now time.Time, msg string) types.InstructionStatus {
	return types.InstructionStatus{
		InstructionID: instruction.ID,
		State:         types.InstructionStateDeclined,
		StatusDate:    now,
		ResultParameters: map[string]any{
			ResultMessageKey: msg,
		},
	}
}
