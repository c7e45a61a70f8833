package supervisor

import (
	"fmt"

	"github.com/conductor-dev/conductor/internal/normalizer"
)

// ErrUnknownEngine means RunAgent was asked to spawn a vendor CLI this
// build does not know how to invoke.
type ErrUnknownEngine struct{ Engine string }

func (e *ErrUnknownEngine) Error() string { return fmt.Sprintf("unknown engine: %s", e.Engine) }

// buildCommand returns the binary and argv Conductor spawns for a vendor
// CLI, given a client-requested prompt and an optional resume token,
// looked up from table.
func buildCommand(table map[string]EngineSpec, engine, prompt, resumeToken string) (binary string, args []string, normEngine normalizer.Engine, err error) {
	spec, ok := resolveEngine(table, engine)
	if !ok {
		return "", nil, "", &ErrUnknownEngine{Engine: engine}
	}
	return spec.Binary, spec.buildArgs(prompt, resumeToken), normalizer.Engine(spec.NormalizerEngine), nil
}
