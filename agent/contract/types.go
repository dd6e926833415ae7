package contract

import (
	"fmt"
	"strings"
	"time"
)

type CapabilityKind string

const (
	CapabilityProspecting      CapabilityKind = "prospecting"
	CapabilityColdCalling      CapabilityKind = "cold_calling"
	CapabilityRateQuoting      CapabilityKind = "rate_quoting"
	CapabilityLoadCoordination CapabilityKind = "load_coordination"
	CapabilityCustomerService  CapabilityKind = "customer_service"
	CapabilityCompliance       CapabilityKind = "compliance"
	CapabilityMarketAnalysis   CapabilityKind = "market_analysis"
	CapabilityDispatch         CapabilityKind = "dispatch"
)

// Capabilities returns every capability kind in registration order.
func Capabilities() []CapabilityKind {
	return []CapabilityKind{
		CapabilityProspecting,
		CapabilityColdCalling,
		CapabilityRateQuoting,
		CapabilityLoadCoordination,
		CapabilityCustomerService,
		CapabilityCompliance,
		CapabilityMarketAnalysis,
		CapabilityDispatch,
	}
}

func ParseCapability(raw string) (CapabilityKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, kind := range Capabilities() {
		if string(kind) == normalized {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCapability, raw)
}

func (k CapabilityKind) Valid() bool {
	_, err := ParseCapability(string(k))
	return err == nil
}

type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentBusy    AgentStatus = "busy"
	AgentOffline AgentStatus = "offline"
)

type PerformanceRecord struct {
	TasksCompleted      int64         `json:"tasks_completed"`
	TasksFailed         int64         `json:"tasks_failed"`
	SuccessRate         float64       `json:"success_rate"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	SatisfactionScore   float64       `json:"satisfaction_score"`
}

type AgentInfo struct {
	ID          string            `json:"id"`
	Capability  CapabilityKind    `json:"capability"`
	Status      AgentStatus       `json:"status"`
	Performance PerformanceRecord `json:"performance"`
}

type TaskStatus string

const (
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Result is the uniform envelope returned for every dispatched task. Output holds the
// variant-specific payload (FreightQuote, []ProspectResult, ...).
type Result struct {
	TaskID     string         `json:"task_id"`
	AgentID    string         `json:"agent_id,omitempty"`
	Capability CapabilityKind `json:"capability"`
	Status     TaskStatus     `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Duration   time.Duration  `json:"duration"`
	Output     any            `json:"output,omitempty"`
}

/* ------------------------------ Domain data ------------------------------ */

type CompanyProfile struct {
	Name      string  `json:"name"`
	Industry  string  `json:"industry"`
	Revenue   float64 `json:"revenue"`
	Employees int     `json:"employees"`
	Location  string  `json:"location"`
	Founded   int     `json:"founded"`
	Public    bool    `json:"public"`
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type CompanyAnalysis struct {
	CompanyName      string   `json:"company_name"`
	Industry         string   `json:"industry"`
	Revenue          float64  `json:"revenue"`
	EmployeeCount    int      `json:"employee_count"`
	FreightPotential float64  `json:"freight_potential"`
	ContactScore     float64  `json:"contact_score"`
	Priority         Priority `json:"priority"`
}

type MarketData struct {
	MarketSize       float64 `json:"market_size"`
	GrowthRate       float64 `json:"growth_rate"`
	CompetitionLevel string  `json:"competition_level"`
	Opportunities    int     `json:"opportunities"`
	Threats          int     `json:"threats"`
}

type CarrierRecord struct {
	CarrierID          string  `json:"carrier_id"`
	AuthorityActive    bool    `json:"authority_active"`
	LiabilityInsurance float64 `json:"liability_insurance"`
	CargoInsurance     float64 `json:"cargo_insurance"`
	SafetyRating       string  `json:"safety_rating"`
}

type CallOutcome string

const (
	OutcomeAppointment   CallOutcome = "appointment"
	OutcomeCallback      CallOutcome = "callback"
	OutcomeNotInterested CallOutcome = "not-interested"
	OutcomeVoicemail     CallOutcome = "voicemail"
	OutcomeBusy          CallOutcome = "busy"
)

func (o CallOutcome) Valid() bool {
	switch o {
	case OutcomeAppointment, OutcomeCallback, OutcomeNotInterested, OutcomeVoicemail, OutcomeBusy:
		return true
	}
	return false
}

// CallStatus is the lifecycle state of a voice session.
type CallStatus string

const (
	CallQueued    CallStatus = "queued"
	CallInitiated CallStatus = "initiated"
	CallConnected CallStatus = "connected"
	CallCompleted CallStatus = "completed"
	CallAbandoned CallStatus = "abandoned"
	CallBusy      CallStatus = "busy"
	CallVoicemail CallStatus = "voicemail"
)

func (s CallStatus) Terminal() bool {
	switch s {
	case CallCompleted, CallAbandoned, CallBusy, CallVoicemail:
		return true
	default:
		return false
	}
}

type DocumentStatus string

const (
	DocumentUploaded DocumentStatus = "uploaded"
	DocumentVerified DocumentStatus = "verified"
	DocumentRejected DocumentStatus = "rejected"
	DocumentArchived DocumentStatus = "archived"
)

type Document struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	LoadID     string         `json:"load_id,omitempty"`
	Content    []byte         `json:"content,omitempty"`
	Status     DocumentStatus `json:"status"`
	UploadedAt time.Time      `json:"uploaded_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
