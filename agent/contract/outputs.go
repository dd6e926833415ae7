package contract

import "time"

type ProspectResult struct {
	CompanyName      string   `json:"company_name"`
	Industry         string   `json:"industry"`
	Region           string   `json:"region,omitempty"`
	Phone            string   `json:"phone"`
	Email            string   `json:"email"`
	Address          string   `json:"address"`
	FreightPotential float64  `json:"freight_potential"`
	ContactScore     float64  `json:"contact_score"`
	Priority         Priority `json:"priority"`
	Notes            string   `json:"notes,omitempty"`
}

type CallResult struct {
	CallID    string        `json:"call_id"`
	Target    string        `json:"target"`
	Campaign  string        `json:"campaign"`
	Status    CallStatus    `json:"status"`
	Outcome   CallOutcome   `json:"outcome"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

func (c CallResult) Satisfaction() float64 {
	switch c.Outcome {
	case OutcomeAppointment:
		return 5
	case OutcomeCallback:
		return 4
	case OutcomeNotInterested:
		return 3
	default:
		return 2.5
	}
}

type FreightQuote struct {
	QuoteID            string        `json:"quote_id"`
	Origin             string        `json:"origin"`
	Destination        string        `json:"destination"`
	Equipment          EquipmentType `json:"equipment"`
	DistanceMiles      float64       `json:"distance_miles"`
	RatePerMile        float64       `json:"rate_per_mile"`
	BaseRate           float64       `json:"base_rate"`
	FuelSurcharge      float64       `json:"fuel_surcharge"`
	AccessorialCharges float64       `json:"accessorial_charges"`
	TotalRate          float64       `json:"total_rate"`
	TransitDays        int           `json:"transit_days"`
	ValidUntil         time.Time     `json:"valid_until"`
	Confidence         float64       `json:"confidence"`
}

type LoadCoordination struct {
	LoadID            string    `json:"load_id"`
	Status            string    `json:"status"`
	CarrierAssigned   bool      `json:"carrier_assigned"`
	PickupScheduled   time.Time `json:"pickup_scheduled"`
	DeliveryScheduled time.Time `json:"delivery_scheduled"`
	Tracking          string    `json:"tracking"`
	DocumentID        string    `json:"document_id,omitempty"`
}

type ServiceResolution string

const (
	ServiceResolved  ServiceResolution = "resolved"
	ServiceEscalated ServiceResolution = "escalated"
)

type ServiceResult struct {
	SessionID  string            `json:"session_id"`
	CallID     string            `json:"call_id"`
	Resolution ServiceResolution `json:"resolution"`
	Duration   time.Duration     `json:"duration"`
}

func (s ServiceResult) Satisfaction() float64 {
	if s.Resolution == ServiceResolved {
		return 5
	}
	return 3
}

type RuleResult struct {
	Rule   string `json:"rule"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

type ComplianceReport struct {
	CarrierID string       `json:"carrier_id,omitempty"`
	Passed    bool         `json:"passed"`
	Rules     []RuleResult `json:"rules"`
	CheckedAt time.Time    `json:"checked_at"`
}

type MarketIntelligence struct {
	Sector          string   `json:"sector"`
	MarketSize      float64  `json:"market_size"`
	GrowthRate      float64  `json:"growth_rate"`
	Competition     string   `json:"competition_level"`
	Opportunities   int      `json:"opportunities"`
	Threats         int      `json:"threats"`
	Recommendations []string `json:"recommendations"`
}

type DispatchResult struct {
	LoadID          string    `json:"load_id"`
	CarrierID       string    `json:"carrier_id"`
	Status          string    `json:"status"`
	DispatchedAt    time.Time `json:"dispatched_at"`
	EstimatedPickup time.Time `json:"estimated_pickup"`
	Tracking        string    `json:"tracking"`
	DriverContact   string    `json:"driver_contact"`
	DocumentID      string    `json:"document_id,omitempty"`
}
