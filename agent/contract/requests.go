package contract

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Request is implemented by every capability-specific task request.
type Request interface {
	Capability() CapabilityKind
	Validate() error
}

// IsNil reports whether req is nil or a nil pointer wrapped in the interface.
func IsNil(req Request) bool {
	if req == nil {
		return true
	}
	v := reflect.ValueOf(req)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

const MaxProspects = 100

type ProspectingRequest struct {
	Industry string `json:"industry"`
	Region   string `json:"region,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (ProspectingRequest) Capability() CapabilityKind { return CapabilityProspecting }

func (r ProspectingRequest) Validate() error {
	if strings.TrimSpace(r.Industry) == "" {
		return fmt.Errorf("%w: industry is required", ErrInvalidInput)
	}
	if r.Limit < 0 || r.Limit > MaxProspects {
		return fmt.Errorf("%w: limit must be between 0 and %d", ErrInvalidInput, MaxProspects)
	}
	return nil
}

type ColdCallRequest struct {
	Target   string `json:"target"`
	Campaign string `json:"campaign"`
}

func (ColdCallRequest) Capability() CapabilityKind { return CapabilityColdCalling }

func (r ColdCallRequest) Validate() error {
	if strings.TrimSpace(r.Target) == "" {
		return fmt.Errorf("%w: target is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Campaign) == "" {
		return fmt.Errorf("%w: campaign is required", ErrInvalidInput)
	}
	return nil
}

type EquipmentType string

const (
	EquipmentDryVan  EquipmentType = "dry_van"
	EquipmentReefer  EquipmentType = "reefer"
	EquipmentFlatbed EquipmentType = "flatbed"
)

type QuoteRequest struct {
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	Equipment   EquipmentType `json:"equipment,omitempty"`
	Hazmat      bool          `json:"hazmat,omitempty"`
	Residential bool          `json:"residential,omitempty"`
}

func (QuoteRequest) Capability() CapabilityKind { return CapabilityRateQuoting }

func (r QuoteRequest) Validate() error {
	origin := strings.TrimSpace(r.Origin)
	destination := strings.TrimSpace(r.Destination)
	if origin == "" || destination == "" {
		return fmt.Errorf("%w: origin and destination are required", ErrInvalidInput)
	}
	if strings.EqualFold(origin, destination) {
		return fmt.Errorf("%w: origin and destination must differ", ErrInvalidInput)
	}
	switch r.Equipment {
	case "", EquipmentDryVan, EquipmentReefer, EquipmentFlatbed:
	default:
		return fmt.Errorf("%w: unsupported equipment %q", ErrInvalidInput, r.Equipment)
	}
	return nil
}

type LoadCoordinationRequest struct {
	LoadID string `json:"load_id"`
}

func (LoadCoordinationRequest) Capability() CapabilityKind { return CapabilityLoadCoordination }

func (r LoadCoordinationRequest) Validate() error {
	if strings.TrimSpace(r.LoadID) == "" {
		return fmt.Errorf("%w: load_id is required", ErrInvalidInput)
	}
	return nil
}

type CustomerServiceRequest struct {
	SessionID string `json:"session_id"`
	Caller    string `json:"caller,omitempty"`
}

func (CustomerServiceRequest) Capability() CapabilityKind { return CapabilityCustomerService }

func (r CustomerServiceRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	return nil
}

type ComplianceRequest struct {
	CarrierID   string   `json:"carrier_id,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

func (ComplianceRequest) Capability() CapabilityKind { return CapabilityCompliance }

func (r ComplianceRequest) Validate() error {
	if strings.TrimSpace(r.CarrierID) == "" && len(r.DocumentIDs) == 0 {
		return fmt.Errorf("%w: carrier_id or document_ids is required", ErrInvalidInput)
	}
	for _, id := range r.DocumentIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: document id is empty", ErrInvalidInput)
		}
	}
	return nil
}

type MarketAnalysisRequest struct {
	Sector string `json:"sector"`
}

func (MarketAnalysisRequest) Capability() CapabilityKind { return CapabilityMarketAnalysis }

func (r MarketAnalysisRequest) Validate() error {
	if strings.TrimSpace(r.Sector) == "" {
		return fmt.Errorf("%w: sector is required", ErrInvalidInput)
	}
	return nil
}

type DispatchRequest struct {
	LoadID    string `json:"load_id"`
	CarrierID string `json:"carrier_id"`
}

func (DispatchRequest) Capability() CapabilityKind { return CapabilityDispatch }

func (r DispatchRequest) Validate() error {
	if strings.TrimSpace(r.LoadID) == "" {
		return fmt.Errorf("%w: load_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.CarrierID) == "" {
		return fmt.Errorf("%w: carrier_id is required", ErrInvalidInput)
	}
	return nil
}

// DecodeRequest builds the request type that belongs to kind from a JSON body.
func DecodeRequest(kind CapabilityKind, raw []byte) (Request, error) {
	var req Request
	switch kind {
	case CapabilityProspecting:
		req = &ProspectingRequest{}
	case CapabilityColdCalling:
		req = &ColdCallRequest{}
	case CapabilityRateQuoting:
		req = &QuoteRequest{}
	case CapabilityLoadCoordination:
		req = &LoadCoordinationRequest{}
	case CapabilityCustomerService:
		req = &CustomerServiceRequest{}
	case CapabilityCompliance:
		req = &ComplianceRequest{}
	case CapabilityMarketAnalysis:
		req = &MarketAnalysisRequest{}
	case CapabilityDispatch:
		req = &DispatchRequest{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, kind)
	}

	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, req); err != nil {
			return nil, fmt.Errorf("%w: decode %s request: %v", ErrInvalidInput, kind, err)
		}
	}
	return req, nil
}
