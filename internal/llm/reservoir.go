package llm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
)

// Reservoir is a Refiner over an ordered pool of lower-priority backends. The first
// member that answers with a parse-valid structure wins.
type Reservoir struct {
	members []Refiner
	logger  *slog.Logger
}

// NewReservoir keeps members in the given order; nil members are ignored.
func NewReservoir(members []Refiner, logger *slog.Logger) *Reservoir {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]Refiner, 0, len(members))
	for _, m := range members {
		if m != nil {
			kept = append(kept, m)
		}
	}
	return &Reservoir{members: kept, logger: logger}
}

func (r *Reservoir) Name() constants.Provider { return constants.RefinerReservoir }

// Available reports whether any member is configured.
func (r *Reservoir) Available() bool {
	for _, m := range r.members {
		if m.Available() {
			return true
		}
	}
	return false
}

// Members returns the configured pool in cascade order.
func (r *Reservoir) Members() []Refiner {
	return append([]Refiner(nil), r.members...)
}

// Refine tries each available member in order. When none is configured, or every
// configured member fails, the result is common.ErrUnavailable wrapping the failures.
func (r *Reservoir) Refine(ctx context.Context, text string, structure document.Structure, language string) (Refined, error) {
	var errs []error
	for _, m := range r.members {
		if !m.Available() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Refined{}, err
		}
		out, err := m.Refine(ctx, text, structure, language)
		if err == nil {
			r.logger.Info("llm.reservoir.ok", "member", m.Name(), "elements", len(out.Structure.Elements))
			return out, nil
		}
		r.logger.Warn("llm.reservoir.member_failed", "member", m.Name(), "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Refined{}, common.Unavailable(string(constants.RefinerReservoir))
	}
	return Refined{}, common.NewAppError("UNAVAILABLE", "reservoir exhausted",
		errors.Join(append([]error{common.ErrUnavailable}, errs...)...))
}
