package service

import (
	"context"
	"encoding/json"

	"verigate/internal/income/models"
)

var deltaKeys = []string{"semanas_cotizadas", "discounted_weeks", "reintegrated_weeks"}

// deltaFromWebhook extracts a top-level contribution delta from the raw
// delivery. ok is false when none of the delta keys is present.
func deltaFromWebhook(raw map[string]any) (ContributionDelta, bool, error) {
	present := false
	for _, k := range deltaKeys {
		if _, found := raw[k]; found {
			present = true
			break
		}
	}
	if !present {
		return ContributionDelta{}, false, nil
	}

	subset := make(map[string]any, len(deltaKeys))
	for _, k := range deltaKeys {
		if v, found := raw[k]; found {
			subset[k] = v
		}
	}
	b, err := json.Marshal(subset)
	if err != nil {
		return ContributionDelta{}, true, err
	}
	var wire struct {
		QuotedWeeks       models.Count `json:"semanas_cotizadas"`
		DiscountedWeeks   models.Count `json:"discounted_weeks"`
		ReintegratedWeeks models.Count `json:"reintegrated_weeks"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return ContributionDelta{}, true, err
	}
	return ContributionDelta(wire), true, nil
}

// warnDeprecatedDelta logs deliveries that still carry the top-level delta.
// The delta never reaches storage.
func (s *Service) warnDeprecatedDelta(ctx context.Context, p *pass) {
	delta, ok, err := deltaFromWebhook(p.raw)
	if !ok {
		return
	}
	if s.metrics != nil {
		s.metrics.IncrementDeprecatedDelta()
	}
	if err != nil {
		s.logger.WarnContext(ctx, "deprecated contribution delta present and unreadable; ignored",
			"candidate_id", p.candidate,
			"error", err,
		)
		return
	}
	weeks := ContributionFromDelta(delta)
	s.logger.WarnContext(ctx, "deprecated contribution delta present; ignored in favour of employment snapshot",
		"candidate_id", p.candidate,
		"delta_weeks", weeks,
	)
}
