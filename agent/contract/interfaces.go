package contract

import (
	"context"
	"time"
)

// ExternalDataSource is the boundary for every lookup that would hit a third-party
// API (company registries, routing, telephony, carrier safety data).
type ExternalDataSource interface {
	FetchCompany(ctx context.Context, name string) (CompanyProfile, error)
	RouteDistance(ctx context.Context, origin, destination string) (float64, error)
	FetchMarket(ctx context.Context, sector string) (MarketData, error)
	PlaceCall(ctx context.Context, target, campaign string) (CallOutcome, error)
	ResolveInquiry(ctx context.Context, sessionID string) (bool, error)
	FetchCarrier(ctx context.Context, carrierID string) (CarrierRecord, error)
}

// HealthChecker is implemented by collaborators that can report readiness during
// orchestrator initialization.
type HealthChecker interface {
	Check(ctx context.Context) error
}

type Recommender interface {
	Recommend(ctx context.Context, sector string, data MarketData) ([]string, error)
}

type DocumentStore interface {
	Upload(ctx context.Context, doc Document) (string, error)
	Get(ctx context.Context, id string) (Document, error)
	SetStatus(ctx context.Context, id string, status DocumentStatus) error
}

// RevenueEstimator turns observed task results into a daily revenue figure.
type RevenueEstimator interface {
	Observe(res Result)
	Estimate(now time.Time) float64
}

// Rated is implemented by task outputs that carry a customer satisfaction signal.
type Rated interface {
	Satisfaction() float64
}
