package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propsync/models"
	"propsync/reconcile"
)

var (
	ErrMappingsUnavailable = errors.New("field mappings unavailable")
	ErrAgencyNotFound      = errors.New("agency not found")
	ErrPropertyNotFound    = errors.New("property not found")
)

type MappingStore interface {
	ListFieldMappings(ctx context.Context) ([]models.FieldMapping, error)
}

type AgencyStore interface {
	GetAgency(ctx context.Context, id int64) (*models.Agency, error)
	ListAgencies(ctx context.Context) ([]models.Agency, error)
	UpdateAgencyPropertyCount(ctx context.Context, agencyID int64) error
}

type PropertyStore interface {
	GetProperty(ctx context.Context, agencyID int64, listReff string) (*models.Property, error)
	ListProperties(ctx context.Context, agencyID int64) ([]models.Property, error)
	UpsertProperty(ctx context.Context, p *models.Property) error
}

// ReconciliationService loads a property, aggregates its provider records and
// compares them field by field.
type ReconciliationService struct {
	mappings   MappingStore
	agencies   AgencyStore
	properties PropertyStore
	aggregator *Aggregator
	engine     *reconcile.Engine
	metrics    *Metrics
}

func NewReconciliationService(mappings MappingStore, agencies AgencyStore, properties PropertyStore, aggregator *Aggregator, engine *reconcile.Engine) *ReconciliationService {
	if engine == nil {
		engine = reconcile.NewEngine(nil)
	}
	return &ReconciliationService{
		mappings:   mappings,
		agencies:   agencies,
		properties: properties,
		aggregator: aggregator,
		engine:     engine,
	}
}

func (s *ReconciliationService) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Reconcile compares one property of an agency, identified by its internal ListReff.
// Provider outages are reported in the result; only store failures are errors.
func (s *ReconciliationService) Reconcile(ctx context.Context, agencyID int64, listReff string, force bool) (*models.Reconciliation, error) {
	agency, err := s.agencies.GetAgency(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("get agency: %w", err)
	}
	if agency == nil {
		return nil, fmt.Errorf("%w: %d", ErrAgencyNotFound, agencyID)
	}

	property, err := s.properties.GetProperty(ctx, agencyID, listReff)
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	if property == nil {
		return nil, fmt.Errorf("%w: %s", ErrPropertyNotFound, listReff)
	}

	return s.ReconcileProperty(ctx, agency, property, force)
}

// ReconcileProperty runs the comparison for an already loaded property.
func (s *ReconciliationService) ReconcileProperty(ctx context.Context, agency *models.Agency, property *models.Property, force bool) (*models.Reconciliation, error) {
	start := time.Now()

	mappings, err := s.mappings.ListFieldMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMappingsUnavailable, err)
	}

	snap, err := s.aggregator.Aggregate(ctx, agency, property, force)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	result := s.engine.Reconcile(mappings, agency, property, snap)
	s.metrics.observeReconcile(result, time.Since(start))
	return result, nil
}
