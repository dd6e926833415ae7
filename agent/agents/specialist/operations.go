package specialist

import (
	"context"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	documentx "github.com/tanpawarit/freight-aiflow/agent/document"
)

const (
	pickupLead   = 24 * time.Hour
	deliveryLead = 72 * time.Hour
)

type loadCoordinationHandler struct {
	tk Toolkit
}

func (h *loadCoordinationHandler) Capability() contractx.CapabilityKind {
	return contractx.CapabilityLoadCoordination
}

func (h *loadCoordinationHandler) Handle(ctx context.Context, raw contractx.Request) (any, error) {
	req, err := requestAs[contractx.LoadCoordinationRequest](raw)
	if err != nil {
		return nil, err
	}
	loadID := strings.TrimSpace(req.LoadID)
	now := h.tk.Now()

	out := contractx.LoadCoordination{
		LoadID:            loadID,
		Status:            "coordinated",
		CarrierAssigned:   true,
		PickupScheduled:   now.Add(pickupLead),
		DeliveryScheduled: now.Add(deliveryLead),
		Tracking:          trackingFor(loadID),
	}
	out.DocumentID = h.tk.uploadDocument(ctx, contractx.Document{
		Name:    fmt.Sprintf("rate-confirmation-%s.txt", loadID),
		Kind:    documentx.KindRateConfirmation,
		LoadID:  loadID,
		Content: []byte(fmt.Sprintf("Load %s\nPickup %s\nDelivery %s\nTracking %s\n", loadID, out.PickupScheduled.Format(time.RFC3339), out.DeliveryScheduled.Format(time.RFC3339), out.Tracking)),
	})
	return out, nil
}

type dispatchHandler struct {
	tk Toolkit
}

func (h *dispatchHandler) Capability() contractx.CapabilityKind {
	return contractx.CapabilityDispatch
}

func (h *dispatchHandler) Handle(ctx context.Context, raw contractx.Request) (any, error) {
	req, err := requestAs[contractx.DispatchRequest](raw)
	if err != nil {
		return nil, err
	}
	loadID := strings.TrimSpace(req.LoadID)
	carrierID := strings.TrimSpace(req.CarrierID)
	now := h.tk.Now()

	out := contractx.DispatchResult{
		LoadID:          loadID,
		CarrierID:       carrierID,
		Status:          "dispatched",
		DispatchedAt:    now,
		EstimatedPickup: now.Add(pickupLead),
		Tracking:        trackingFor(loadID),
		DriverContact:   phoneFor(carrierID + "/" + loadID),
	}
	out.DocumentID = h.tk.uploadDocument(ctx, contractx.Document{
		Name:    fmt.Sprintf("dispatch-sheet-%s.txt", loadID),
		Kind:    documentx.KindDispatchSheet,
		LoadID:  loadID,
		Content: []byte(fmt.Sprintf("Load %s\nCarrier %s\nDriver %s\nPickup %s\n", loadID, carrierID, out.DriverContact, out.EstimatedPickup.Format(time.RFC3339))),
	})
	return out, nil
}

// uploadDocument stores doc when a document store is configured. Upload failures are
// logged and leave the id empty; the operation itself still succeeds.
func (tk Toolkit) uploadDocument(ctx context.Context, doc contractx.Document) string {
	if tk.Documents == nil {
		return ""
	}
	id, err := tk.Documents.Upload(ctx, doc)
	if err != nil {
		tk.Logger.Warn().Err(err).Str("load_id", doc.LoadID).Str("kind", doc.Kind).Msg("document upload failed")
		return ""
	}
	return id
}
