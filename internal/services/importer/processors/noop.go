package processors

import (
	"context"

	"lotting_ledger/internal/ports"
)

type NoopProcessor struct{}

func (NoopProcessor) Type() string { return "noop" }

func (NoopProcessor) ProcessBatch(ctx context.Context, batch []ports.Row) error {
	ports.TallyFrom(ctx).Add(0, len(batch), 0)
	return nil
}

func DefaultRegistry() map[string]ports.Processor {
	return map[string]ports.Processor{
		"noop": NoopProcessor{},
	}
}

// Register adds processors under their own Type.
func Register(reg map[string]ports.Processor, procs ...ports.Processor) map[string]ports.Processor {
	for _, p := range procs {
		reg[p.Type()] = p
	}
	return reg
}
