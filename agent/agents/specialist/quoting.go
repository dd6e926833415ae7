package specialist

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

const (
	fuelSurchargeRate = 0.15
	milesPerDay       = 500
	quoteValidity     = 24 * time.Hour
	quoteConfidence   = 0.95

	reeferChargeCents      = 150_00
	hazmatChargeCents      = 200_00
	residentialChargeCents = 75_00
)

type routeDescriptor struct {
	Op   string `json:"op"`
	From string `json:"from"`
	To   string `json:"to"`
}

// newRouteDescriptor orders the endpoints so A->B and B->A share a cache entry.
func newRouteDescriptor(origin, destination string) routeDescriptor {
	a := strings.ToLower(strings.TrimSpace(origin))
	b := strings.ToLower(strings.TrimSpace(destination))
	if b < a {
		a, b = b, a
	}
	return routeDescriptor{Op: "route", From: a, To: b}
}

type rateQuotingHandler struct {
	tk Toolkit
}

func (h *rateQuotingHandler) Capability() contractx.CapabilityKind {
	return contractx.CapabilityRateQuoting
}

func (h *rateQuotingHandler) Handle(ctx context.Context, raw contractx.Request) (any, error) {
	req, err := requestAs[contractx.QuoteRequest](raw)
	if err != nil {
		return nil, err
	}

	distance, err := h.tk.RouteCache.GetOrCompute(ctx, newRouteDescriptor(req.Origin, req.Destination), h.tk.RouteTTL,
		func(ctx context.Context) (float64, error) {
			return h.tk.Source.RouteDistance(ctx, req.Origin, req.Destination)
		})
	if err != nil {
		return nil, err
	}
	if distance <= 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
		return nil, fmt.Errorf("%w: no usable distance for %s -> %s", contractx.ErrTaskFailed, req.Origin, req.Destination)
	}

	return BuildQuote(req, distance, h.tk.RatePerMile, h.tk.Now()), nil
}

// BuildQuote prices a lane. Amounts are computed in whole cents so the parts always
// add up to the total.
func BuildQuote(req contractx.QuoteRequest, distance, ratePerMile float64, now time.Time) contractx.FreightQuote {
	equipment := req.Equipment
	if equipment == "" {
		equipment = contractx.EquipmentDryVan
	}

	baseCents := int64(math.Round(distance * ratePerMile * 100))
	fuelCents := int64(math.Round(float64(baseCents) * fuelSurchargeRate))

	var accessorialCents int64
	if equipment == contractx.EquipmentReefer {
		accessorialCents += reeferChargeCents
	}
	if req.Hazmat {
		accessorialCents += hazmatChargeCents
	}
	if req.Residential {
		accessorialCents += residentialChargeCents
	}

	transitDays := int(math.Ceil(distance / milesPerDay))
	if transitDays < 1 {
		transitDays = 1
	}

	return contractx.FreightQuote{
		QuoteID:            "Q-" + strings.ToUpper(uuid.NewString()[:8]),
		Origin:             strings.TrimSpace(req.Origin),
		Destination:        strings.TrimSpace(req.Destination),
		Equipment:          equipment,
		DistanceMiles:      distance,
		RatePerMile:        ratePerMile,
		BaseRate:           dollars(baseCents),
		FuelSurcharge:      dollars(fuelCents),
		AccessorialCharges: dollars(accessorialCents),
		TotalRate:          dollars(baseCents + fuelCents + accessorialCents),
		TransitDays:        transitDays,
		ValidUntil:         now.Add(quoteValidity),
		Confidence:         quoteConfidence,
	}
}

func dollars(cents int64) float64 {
	return float64(cents) / 100
}
