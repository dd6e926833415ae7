package specialist

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

type prospectingHandler struct {
	tk Toolkit
}

func (h *prospectingHandler) Capability() contractx.CapabilityKind {
	return contractx.CapabilityProspecting
}

func (h *prospectingHandler) Handle(ctx context.Context, raw contractx.Request) (any, error) {
	req, err := requestAs[contractx.ProspectingRequest](raw)
	if err != nil {
		return nil, err
	}
	industry := strings.TrimSpace(req.Industry)
	region := strings.TrimSpace(req.Region)
	limit := req.Limit
	if limit <= 0 {
		limit = h.tk.ProspectLimit
	}

	prospects := make([]contractx.ProspectResult, 0, limit)
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s Company %d", industry, i)
		analysis, err := h.tk.Intel.Analyze(ctx, name)
		if err != nil {
			return nil, err
		}
		prospects = append(prospects, contractx.ProspectResult{
			CompanyName:      analysis.CompanyName,
			Industry:         analysis.Industry,
			Region:           region,
			Phone:            phoneFor(name),
			Email:            "contact@" + nonAlnum.ReplaceAllString(strings.ToLower(name), "") + ".com",
			Address:          addressFor(name, region),
			FreightPotential: analysis.FreightPotential,
			ContactScore:     analysis.ContactScore,
			Priority:         analysis.Priority,
			Notes:            fmt.Sprintf("Discovered via %s industry search", industry),
		})
	}

	sort.SliceStable(prospects, func(i, j int) bool {
		return prospects[i].FreightPotential+prospects[i].ContactScore >
			prospects[j].FreightPotential+prospects[j].ContactScore
	})
	return prospects, nil
}

func addressFor(name, region string) string {
	if region == "" {
		region = "Unknown"
	}
	var n uint32
	for _, c := range name {
		n = n*31 + uint32(c)
	}
	return fmt.Sprintf("%d Main St, %s", n%9999+1, region)
}
