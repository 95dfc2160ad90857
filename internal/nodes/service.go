package nodes

import (
	"context"
	"errors"
	"sync/atomic"

	"frontdesk_backend/internal/events"
	"frontdesk_backend/internal/quota"
	"frontdesk_backend/internal/telephony"
	"frontdesk_backend/internal/tenants"
	"frontdesk_backend/internal/tier"
	"frontdesk_backend/platform/apperr"
	"frontdesk_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Provisioning audit outcomes.
const (
	outcomeProvisioned      = "provisioned"
	outcomeCapacityExceeded = "capacity_exceeded"
	outcomeProviderFailed   = "provider_failed"
	outcomePersistFailed    = "persist_failed"
	outcomeCompensated      = "compensated"
	outcomeOrphaned         = "orphaned"
)

type store interface {
	CountActive(ctx context.Context, tenantID uuid.UUID) (int, error)
	InsertIfUnderCap(ctx context.Context, n Node, maxNodes int) (bool, error)
	GetByIDForTenant(ctx context.Context, id, tenantID uuid.UUID) (Node, error)
	GetActiveByPhone(ctx context.Context, e164 string) (Node, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Node, error)
	ListActiveOverCap(ctx context.Context, tenantID uuid.UUID, keep int) ([]Node, error)
	MarkReleased(ctx context.Context, id, tenantID uuid.UUID) error
	LogAttempt(ctx context.Context, tenantID uuid.UUID, role Role, provider, outcome, detail string) error
}

type tenantReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (tenants.Tenant, error)
}

type gate interface {
	Check(ctx context.Context, provider, direction string) error
}

type reconcileEnqueuer interface {
	EnqueueReconcileOrphan(ctx context.Context, tenantID uuid.UUID, provider, resourceID string) error
}

// Service implements node provisioning and release. Provisioning is a small
// saga: acquire the external number first, persist second, and release the
// number again if persistence does not land.
type Service struct {
	store    store
	tenants  tenantReader
	gate     gate
	provider telephony.Provider
	enqueue  reconcileEnqueuer
	bus      events.Bus
	log      *logger.Logger
}

func NewService(store store, tenantReader tenantReader, gate gate, provider telephony.Provider, enqueue reconcileEnqueuer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		tenants:  tenantReader,
		gate:     gate,
		provider: provider,
		enqueue:  enqueue,
		bus:      bus,
		log:      log,
	}
}

// ProvisionRequest describes the node to create.
type ProvisionRequest struct {
	Role        Role
	CountryCode string
	AreaCode    string
}

// Provision creates an active node for the tenant. Tier and status are read
// fresh; the capacity precheck keeps obviously-full tenants from spending a
// provider acquisition, and the insert guard closes the concurrent race.
func (s *Service) Provision(ctx context.Context, tenantID uuid.UUID, req ProvisionRequest) (Node, error) {
	if !req.Role.Valid() {
		return Node{}, &InvalidRoleError{Role: string(req.Role)}
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return Node{}, err
	}
	if tenant.Suspended() {
		return Node{}, tenants.ErrTenantSuspended
	}

	policy, err := tier.Resolve(tenant.Tier)
	if err != nil {
		return Node{}, err
	}

	active, err := s.store.CountActive(ctx, tenantID)
	if err != nil {
		return Node{}, err
	}
	if active >= policy.MaxNodes {
		s.logAttempt(ctx, tenantID, req.Role, outcomeCapacityExceeded, "precheck")
		return Node{}, &CapacityExceededError{Tier: tenant.Tier, MaxNodes: policy.MaxNodes}
	}

	if err := s.gate.Check(ctx, s.provider.Name(), quota.DirectionInbound); err != nil {
		return Node{}, err
	}

	acquired, err := s.provider.AcquireNumber(ctx, telephony.AcquireNumberRequest{
		CountryCode: req.CountryCode,
		AreaCode:    req.AreaCode,
	})
	if err != nil {
		s.logAttempt(ctx, tenantID, req.Role, outcomeProviderFailed, err.Error())
		return Node{}, apperr.Wrap(apperr.KindUnavailable, "telephony provider could not allocate a number", err)
	}

	node := Node{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		Role:               req.Role,
		PhoneNumber:        acquired.E164Number,
		CountryCode:        req.CountryCode,
		Provider:           s.provider.Name(),
		ProviderResourceID: acquired.ResourceID,
		Status:             StatusActive,
	}

	inserted, err := s.store.InsertIfUnderCap(ctx, node, policy.MaxNodes)
	if err != nil {
		s.logAttempt(ctx, tenantID, req.Role, outcomePersistFailed, err.Error())
		if rerr := s.compensate(ctx, tenantID, req.Role, acquired); rerr != nil {
			return Node{}, errors.Join(err, rerr)
		}
		return Node{}, err
	}
	if !inserted {
		// Lost the race for the last capacity slot.
		s.logAttempt(ctx, tenantID, req.Role, outcomeCapacityExceeded, "insert guard")
		capErr := &CapacityExceededError{Tier: tenant.Tier, MaxNodes: policy.MaxNodes}
		if rerr := s.compensate(ctx, tenantID, req.Role, acquired); rerr != nil {
			return Node{}, errors.Join(capErr, rerr)
		}
		return Node{}, capErr
	}

	s.logAttempt(ctx, tenantID, req.Role, outcomeProvisioned, node.PhoneNumber)
	s.bus.Publish(ctx, events.NodeProvisioned{
		BaseEvent:   events.NewBaseEvent(),
		NodeID:      node.ID,
		TenantID:    tenantID,
		PhoneNumber: node.PhoneNumber,
		Role:        string(node.Role),
		CountryCode: node.CountryCode,
	})

	return node, nil
}

// compensate returns an acquired number after persistence failed. A failed
// release leaves the resource leaked at the provider; the orphan is logged,
// announced, and handed to the reconcile task for retried release. The
// release error, if any, is returned so callers can report both failures.
func (s *Service) compensate(ctx context.Context, tenantID uuid.UUID, role Role, acquired telephony.AcquireNumberResult) error {
	err := s.provider.ReleaseNumber(ctx, acquired.ResourceID)
	if err == nil {
		s.logAttempt(ctx, tenantID, role, outcomeCompensated, acquired.ResourceID)
		return nil
	}

	s.logAttempt(ctx, tenantID, role, outcomeOrphaned, acquired.ResourceID+": "+err.Error())
	s.log.OrphanedResource(s.provider.Name(), acquired.ResourceID, tenantID.String(), err)
	s.bus.Publish(ctx, events.NodeOrphaned{
		BaseEvent:    events.NewBaseEvent(),
		TenantID:     tenantID,
		Provider:     s.provider.Name(),
		ResourceID:   acquired.ResourceID,
		PhoneNumber:  acquired.E164Number,
		ReleaseError: err.Error(),
	})
	if qerr := s.enqueue.EnqueueReconcileOrphan(ctx, tenantID, s.provider.Name(), acquired.ResourceID); qerr != nil {
		s.log.Error("failed to enqueue orphan reconcile", "error", qerr)
	}
	return err
}

// Release deactivates a node and returns its number to the provider. The row
// flips first so the node stops counting against capacity and receiving
// dispatches even if the provider release has to be retried.
func (s *Service) Release(ctx context.Context, tenantID, nodeID uuid.UUID) error {
	node, err := s.store.GetByIDForTenant(ctx, nodeID, tenantID)
	if err != nil {
		return err
	}
	if node.Status != StatusActive {
		return ErrNodeNotFound
	}

	if err := s.store.MarkReleased(ctx, nodeID, tenantID); err != nil {
		return err
	}

	if err := s.provider.ReleaseNumber(ctx, node.ProviderResourceID); err != nil {
		s.log.OrphanedResource(node.Provider, node.ProviderResourceID, tenantID.String(), err)
		s.bus.Publish(ctx, events.NodeOrphaned{
			BaseEvent:    events.NewBaseEvent(),
			TenantID:     tenantID,
			Provider:     node.Provider,
			ResourceID:   node.ProviderResourceID,
			PhoneNumber:  node.PhoneNumber,
			ReleaseError: err.Error(),
		})
		if qerr := s.enqueue.EnqueueReconcileOrphan(ctx, tenantID, node.Provider, node.ProviderResourceID); qerr != nil {
			s.log.Error("failed to enqueue orphan reconcile", "error", qerr)
		}
	}

	s.bus.Publish(ctx, events.NodeReleased{
		BaseEvent: events.NewBaseEvent(),
		NodeID:    nodeID,
		TenantID:  tenantID,
	})
	return nil
}

// EnforceTierCapacity releases the newest active nodes beyond the tier's
// capacity. Called after a downgrade; a tenant already within capacity is a
// no-op.
func (s *Service) EnforceTierCapacity(ctx context.Context, tenantID uuid.UUID, newTier tier.Tier) (int, error) {
	policy, err := tier.Resolve(newTier)
	if err != nil {
		return 0, err
	}

	excess, err := s.store.ListActiveOverCap(ctx, tenantID, policy.MaxNodes)
	if err != nil {
		return 0, err
	}

	var released atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, node := range excess {
		g.Go(func() error {
			if err := s.Release(gctx, tenantID, node.ID); err != nil {
				// Released concurrently elsewhere; the capacity goal is met.
				if errors.Is(err, ErrNodeNotFound) {
					return nil
				}
				return err
			}
			released.Add(1)
			return nil
		})
	}

	err = g.Wait()
	return int(released.Load()), err
}

// ReconcileOrphan retries releasing a leaked provider resource. Invoked from
// the background worker; returning an error lets the task retry with backoff.
func (s *Service) ReconcileOrphan(ctx context.Context, resourceID string) error {
	return s.provider.ReleaseNumber(ctx, resourceID)
}

// List returns the tenant's nodes.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Node, error) {
	return s.store.ListByTenant(ctx, tenantID)
}

// Get loads one node scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, nodeID uuid.UUID) (Node, error) {
	return s.store.GetByIDForTenant(ctx, nodeID, tenantID)
}

// ActiveByPhone resolves an active node by number for webhook attribution.
func (s *Service) ActiveByPhone(ctx context.Context, e164 string) (Node, error) {
	return s.store.GetActiveByPhone(ctx, e164)
}

func (s *Service) logAttempt(ctx context.Context, tenantID uuid.UUID, role Role, outcome, detail string) {
	if err := s.store.LogAttempt(ctx, tenantID, role, s.provider.Name(), outcome, detail); err != nil {
		s.log.DatabaseError("provisioning_log", err)
	}
}
