package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

const (
	minLiabilityInsurance = 750_000
	minCargoInsurance     = 100_000
)

type complianceHandler struct {
	tk Toolkit
}

func (h *complianceHandler) Capability() contractx.CapabilityKind {
	return contractx.CapabilityCompliance
}

func (h *complianceHandler) Handle(ctx context.Context, raw contractx.Request) (any, error) {
	req, err := requestAs[contractx.ComplianceRequest](raw)
	if err != nil {
		return nil, err
	}

	report := contractx.ComplianceReport{
		CarrierID: strings.TrimSpace(req.CarrierID),
		CheckedAt: h.tk.Now(),
	}

	if report.CarrierID != "" {
		rec, err := h.tk.Source.FetchCarrier(ctx, report.CarrierID)
		if err != nil {
			return nil, err
		}
		report.Rules = append(report.Rules, CarrierRules(rec)...)
	}

	verified := make([]string, 0, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		rule, err := h.documentRule(ctx, strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		report.Rules = append(report.Rules, rule.RuleResult)
		if rule.verify {
			verified = append(verified, rule.id)
		}
	}

	report.Passed = true
	for _, r := range report.Rules {
		if !r.Passed {
			report.Passed = false
			break
		}
	}

	if report.Passed {
		for _, id := range verified {
			if err := h.tk.Documents.SetStatus(ctx, id, contractx.DocumentVerified); err != nil {
				h.tk.Logger.Warn().Err(err).Str("document_id", id).Msg("mark document verified failed")
			}
		}
	}
	return report, nil
}

type documentCheck struct {
	contractx.RuleResult
	id     string
	verify bool
}

func (h *complianceHandler) documentRule(ctx context.Context, id string) (documentCheck, error) {
	check := documentCheck{
		RuleResult: contractx.RuleResult{Rule: "document:" + id},
		id:         id,
	}
	if h.tk.Documents == nil {
		check.Detail = "document store unavailable"
		return check, nil
	}

	doc, err := h.tk.Documents.Get(ctx, id)
	switch {
	case errors.Is(err, contractx.ErrDocumentNotFound):
		check.Detail = "missing"
		return check, nil
	case err != nil:
		return check, err
	}

	switch doc.Status {
	case contractx.DocumentRejected:
		check.Detail = "rejected"
	case contractx.DocumentArchived:
		check.Detail = "archived"
	default:
		check.Passed = true
		check.Detail = fmt.Sprintf("%s %s", doc.Kind, doc.Status)
		check.verify = doc.Status == contractx.DocumentUploaded
	}
	return check, nil
}

// CarrierRules evaluates the static carrier qualification rules.
func CarrierRules(rec contractx.CarrierRecord) []contractx.RuleResult {
	safety := strings.ToLower(strings.TrimSpace(rec.SafetyRating))
	return []contractx.RuleResult{
		{
			Rule:   "authority_active",
			Passed: rec.AuthorityActive,
		},
		{
			Rule:   "liability_insurance",
			Passed: rec.LiabilityInsurance >= minLiabilityInsurance,
			Detail: fmt.Sprintf("%.0f of %d required", rec.LiabilityInsurance, minLiabilityInsurance),
		},
		{
			Rule:   "cargo_insurance",
			Passed: rec.CargoInsurance >= minCargoInsurance,
			Detail: fmt.Sprintf("%.0f of %d required", rec.CargoInsurance, minCargoInsurance),
		},
		{
			Rule:   "safety_rating",
			Passed: safety != "unsatisfactory",
			Detail: safety,
		},
	}
}
