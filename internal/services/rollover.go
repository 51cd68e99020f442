package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/core"
	"budget/internal/settings"
)

// TemplateSource loads the current budget template. It is called on every
// run so edits to the file apply at the next rollover.
type TemplateSource func() (settings.Template, error)

// FileTemplate reads the template at path. The file is parsed again only
// after it changes.
func FileTemplate(path string) TemplateSource {
	return settings.NewLoader(path).Load
}

// RolloverProcessor runs the monthly period change: make sure the period
// containing now exists and is active, then populate it from the template.
type RolloverProcessor struct {
	periods  *PeriodService
	template TemplateSource
}

func NewRolloverProcessor(periods *PeriodService, template TemplateSource) *RolloverProcessor {
	return &RolloverProcessor{
		periods:  periods,
		template: template,
	}
}

// ProcessRollover returns the population result, or nil when the period
// did not need populating.
func (p *RolloverProcessor) ProcessRollover(ctx context.Context, now time.Time, mode RolloverMode) (*core.PopulationResult, error) {
	if p.periods == nil || p.template == nil {
		return nil, fmt.Errorf("rollover processor not properly initialized")
	}
	checker, err := GetPopulationChecker(mode)
	if err != nil {
		return nil, err
	}

	spec := p.periods.Rule().SpecFor(now)
	period, err := p.periods.EnsurePeriod(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("rollover: %w", err)
	}

	if !checker.IsDue(period, now) {
		slog.InfoContext(ctx, "Budget period already populated",
			"period", period.Name,
			"populated_at", period.PopulatedAt)
		return nil, nil
	}

	tmpl, err := p.template()
	if err != nil {
		return nil, fmt.Errorf("rollover: load template: %w", err)
	}

	slog.InfoContext(ctx, "Populating budget period",
		"period", period.Name,
		"start", period.StartDate.String(),
		"end", period.EndDate.String(),
		"mode", mode)

	result, err := p.periods.PopulatePeriodFromTemplate(ctx, period.ID, tmpl)
	if err != nil {
		return nil, fmt.Errorf("rollover: %w", err)
	}
	return &result, nil
}
