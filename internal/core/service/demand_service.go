package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/demand-desk/internal/core/domain"
	"github.com/rl1809/demand-desk/internal/core/workflow"
	"github.com/rl1809/demand-desk/internal/port"
)

// releaseTimeout bounds the rollback of a form number reservation.
const releaseTimeout = 5 * time.Second

// Result is the outcome of a submit, reject or resubmit. Denial is set when
// Kind is workflow.Denied; the request then keeps its stored status.
type Result struct {
	Kind     workflow.OutcomeKind
	From     domain.RequestStatus
	To       domain.RequestStatus
	Request  domain.DemandRequest
	Denial   error
	Warnings []string
}

type OpenOptions struct {
	Mode       workflow.Mode
	Actor      domain.Actor
	FiscalYear string
	RequestID  string
}

type DemandService struct {
	requests port.RequestRepository
	catalog  port.CatalogRepository
	reserver port.FormNumberReserver
	logger   *zap.Logger
	now      func() time.Time
}

// NewDemandService wires the workflow to its storage. reserver may be nil, in
// which case numbering races are left to the repository's unique key.
func NewDemandService(requests port.RequestRepository, catalog port.CatalogRepository, reserver port.FormNumberReserver, logger *zap.Logger) *DemandService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DemandService{
		requests: requests,
		catalog:  catalog,
		reserver: reserver,
		logger:   logger,
		now:      time.Now,
	}
}

// OpenSession starts a new request or loads a stored one for edit or view.
func (s *DemandService) OpenSession(ctx context.Context, opts OpenOptions) (*workflow.Session, error) {
	catalog, err := s.catalog.ListInventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	if opts.Mode == workflow.ModeNew || opts.Mode == "" {
		existing, err := s.requests.ListByFiscalYear(ctx, opts.FiscalYear)
		if err != nil {
			return nil, fmt.Errorf("list requests: %w", err)
		}
		return workflow.NewSession(opts.Actor, opts.FiscalYear, existing, catalog), nil
	}

	stored, err := s.requests.GetByID(ctx, opts.RequestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if stored == nil {
		return nil, domain.ErrRequestNotFound
	}
	return workflow.LoadSession(opts.Mode, opts.Actor, *stored, catalog), nil
}

// ChangeFiscalYear renumbers a new session against the target year.
func (s *DemandService) ChangeFiscalYear(ctx context.Context, sess *workflow.Session, fiscalYear string) error {
	existing, err := s.requests.ListByFiscalYear(ctx, fiscalYear)
	if err != nil {
		return fmt.Errorf("list requests: %w", err)
	}
	return sess.SetFiscalYear(fiscalYear, existing)
}

func (s *DemandService) NextFormNumber(ctx context.Context, fiscalYear string) (int, error) {
	existing, err := s.requests.ListByFiscalYear(ctx, fiscalYear)
	if err != nil {
		return 0, fmt.Errorf("list requests: %w", err)
	}
	return workflow.NextFormNumber(existing, fiscalYear), nil
}

// Catalog lists the inventory items a new request can pick from.
func (s *DemandService) Catalog(ctx context.Context) ([]domain.InventoryItem, error) {
	items, err := s.catalog.ListInventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return items, nil
}

// RefreshCatalog reloads the catalog past any cache. Sources without a cache
// are simply re-read.
func (s *DemandService) RefreshCatalog(ctx context.Context, actor domain.Actor) ([]domain.InventoryItem, error) {
	if actor.Role != domain.RoleStoreKeeper && actor.Role != domain.RoleApprover {
		return nil, domain.ErrRefreshDenied
	}

	refresher, ok := s.catalog.(port.CatalogRefresher)
	if !ok {
		return s.Catalog(ctx)
	}
	items, err := refresher.RefreshInventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh catalog: %w", err)
	}
	s.logger.Info("catalog refreshed", zap.Int("items", len(items)), zap.String("actor", actor.Name))
	return items, nil
}

// Submit validates and saves the session, moving the request along the
// approval chain when the actor's role allows it.
func (s *DemandService) Submit(ctx context.Context, sess *workflow.Session) (*Result, error) {
	if sess.Mode() == workflow.ModeView {
		return nil, domain.ErrReadOnly
	}
	actor := sess.Actor()
	editable := sess.Editable()

	base := sess.Draft()
	if !editable {
		base = *sess.Stored()
	}
	if err := workflow.Validate(base); err != nil {
		return &Result{Kind: workflow.Invalid, From: base.Status, To: base.Status, Request: base}, err
	}

	d := workflow.Decide(sess.Stored(), actor)
	result := &Result{Kind: d.Kind, From: d.From, To: d.To, Denial: d.Err}
	if d.Kind == workflow.Denied && !editable {
		result.Request = base
		return result, nil
	}

	next := base
	if d.Kind == workflow.Transitioned {
		next = workflow.Apply(base, d, actor)
	} else {
		next.Status = d.From
	}
	if d.To == domain.StatusVerified && d.From != d.To {
		result.Warnings = sess.StockShortfalls()
	}

	saved, err := s.persist(ctx, next, sess.IsNew())
	if err != nil {
		return nil, err
	}
	sess.Commit(saved)
	result.Request = saved

	s.logger.Info("demand request saved",
		zap.String("id", saved.ID),
		zap.String("fiscal_year", saved.FiscalYear),
		zap.Int("form_no", saved.FormNo),
		zap.String("outcome", string(d.Kind)),
		zap.String("from", string(d.From)),
		zap.String("to", string(saved.Status)),
		zap.String("actor", actor.Name),
	)
	return result, nil
}

// Reject moves a pending or verified request to Rejected with a reason.
// The session's edits are discarded; the stored copy is rejected.
func (s *DemandService) Reject(ctx context.Context, sess *workflow.Session, reason string) (*Result, error) {
	if sess.IsNew() {
		return nil, domain.ErrRequestNotFound
	}
	if sess.Mode() == workflow.ModeView {
		return nil, domain.ErrReadOnly
	}
	stored := *sess.Stored()
	actor := sess.Actor()

	d := workflow.DecideReject(stored, actor, reason)
	result := &Result{Kind: d.Kind, From: d.From, To: d.To, Request: stored}
	switch d.Kind {
	case workflow.Invalid:
		return result, d.Err
	case workflow.Denied:
		result.Denial = d.Err
		return result, nil
	}

	saved, err := s.persist(ctx, workflow.ApplyReject(stored, reason), false)
	if err != nil {
		return nil, err
	}
	sess.Commit(saved)
	result.Request = saved

	s.logger.Info("demand request rejected",
		zap.String("id", saved.ID),
		zap.Int("form_no", saved.FormNo),
		zap.String("from", string(d.From)),
		zap.String("actor", actor.Name),
	)
	return result, nil
}

// Resubmit sends a rejected request back to Pending for its requester.
func (s *DemandService) Resubmit(ctx context.Context, sess *workflow.Session) (*Result, error) {
	if sess.IsNew() {
		return nil, domain.ErrRequestNotFound
	}
	stored := *sess.Stored()
	next, err := workflow.ApplyResubmit(stored, sess.Actor())
	if err != nil {
		return nil, err
	}

	saved, err := s.persist(ctx, next, false)
	if err != nil {
		return nil, err
	}
	sess.Commit(saved)

	s.logger.Info("demand request resubmitted",
		zap.String("id", saved.ID),
		zap.Int("form_no", saved.FormNo),
		zap.String("actor", sess.Actor().Name),
	)
	return &Result{Kind: workflow.Transitioned, From: stored.Status, To: saved.Status, Request: saved}, nil
}

func (s *DemandService) persist(ctx context.Context, req domain.DemandRequest, isNew bool) (domain.DemandRequest, error) {
	now := s.now()
	req.UpdatedAt = now

	if isNew {
		req.ID = uuid.NewString()
		req.CreatedAt = now
		req.Version = 0

		if s.reserver != nil {
			ok, err := s.reserver.ReserveFormNumber(ctx, req.FiscalYear, req.FormNo)
			if err != nil {
				return domain.DemandRequest{}, fmt.Errorf("reserve form number: %w", err)
			}
			if !ok {
				return domain.DemandRequest{}, fmt.Errorf("form %d of %s: %w", req.FormNo, req.FiscalYear, domain.ErrConflict)
			}
		}
	}

	saved, err := s.requests.Save(ctx, req, req.Version)
	if err != nil {
		if isNew && s.reserver != nil {
			if releaseErr := s.release(ctx, req.FiscalYear, req.FormNo); releaseErr != nil {
				err = errors.Join(err, fmt.Errorf("release form number: %w", releaseErr))
			}
		}
		return domain.DemandRequest{}, fmt.Errorf("save request: %w", err)
	}
	return saved, nil
}

// release frees a reserved number after a failed save. It runs detached from
// the caller's cancellation: a client that hangs up mid-save must not leave
// the number held.
func (s *DemandService) release(ctx context.Context, fiscalYear string, formNo int) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := s.reserver.ReleaseFormNumber(ctx, fiscalYear, formNo); err != nil {
		s.logger.Warn("form number left reserved",
			zap.String("fiscal_year", fiscalYear),
			zap.Int("form_no", formNo),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// PendingFor lists the requests waiting on the actor: store keepers verify
// Pending requests, approvers approve Verified ones. Newest form first.
func (s *DemandService) PendingFor(ctx context.Context, actor domain.Actor, fiscalYear string) ([]domain.DemandRequest, error) {
	var want domain.RequestStatus
	switch actor.Role {
	case domain.RoleStoreKeeper:
		want = domain.StatusPending
	case domain.RoleApprover:
		want = domain.StatusVerified
	default:
		return []domain.DemandRequest{}, nil
	}
	return s.filter(ctx, fiscalYear, func(r domain.DemandRequest) bool { return r.Status == want })
}

// SubmittedBy lists the actor's own requests, newest form first.
func (s *DemandService) SubmittedBy(ctx context.Context, actor domain.Actor, fiscalYear string) ([]domain.DemandRequest, error) {
	return s.filter(ctx, fiscalYear, func(r domain.DemandRequest) bool { return workflow.IsCreator(r, actor) })
}

func (s *DemandService) filter(ctx context.Context, fiscalYear string, keep func(domain.DemandRequest) bool) ([]domain.DemandRequest, error) {
	all, err := s.requests.ListByFiscalYear(ctx, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	out := make([]domain.DemandRequest, 0, len(all))
	for _, r := range all {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FormNo > out[j].FormNo })
	return out, nil
}
