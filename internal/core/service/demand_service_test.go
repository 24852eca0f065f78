package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rl1809/demand-desk/internal/core/domain"
	"github.com/rl1809/demand-desk/internal/core/workflow"
)

// Mock RequestRepository
type mockRequestRepo struct {
	mu       sync.Mutex
	requests map[string]domain.DemandRequest
	saves    int
	failNext error
	// beforeSave runs at the start of Save, outside the lock.
	beforeSave func()
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]domain.DemandRequest)}
}

func (m *mockRequestRepo) ListByFiscalYear(ctx context.Context, fiscalYear string) ([]domain.DemandRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.DemandRequest
	for _, r := range m.requests {
		if r.FiscalYear == fiscalYear {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*domain.DemandRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	c := r.Clone()
	return &c, nil
}

func (m *mockRequestRepo) Save(ctx context.Context, req domain.DemandRequest, expectedVersion int) (domain.DemandRequest, error) {
	if m.beforeSave != nil {
		m.beforeSave()
	}
	if err := ctx.Err(); err != nil {
		return domain.DemandRequest{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return domain.DemandRequest{}, err
	}
	if current, ok := m.requests[req.ID]; ok && current.Version != expectedVersion {
		return domain.DemandRequest{}, domain.ErrConflict
	}
	req.Version = expectedVersion + 1
	m.requests[req.ID] = req.Clone()
	m.saves++
	return req, nil
}

// Mock CatalogRepository
type mockCatalog []domain.InventoryItem

func (m mockCatalog) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	return m, nil
}

// Mock FormNumberReserver
type mockReserver struct {
	mu       sync.Mutex
	taken    map[string]bool
	released int
}

func newMockReserver() *mockReserver {
	return &mockReserver{taken: make(map[string]bool)}
}

func (m *mockReserver) ReserveFormNumber(ctx context.Context, fiscalYear string, formNo int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s:%d", fiscalYear, formNo)
	if m.taken[key] {
		return false, nil
	}
	m.taken[key] = true
	return true, nil
}

func (m *mockReserver) ReleaseFormNumber(ctx context.Context, fiscalYear string, formNo int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.taken, fmt.Sprintf("%s:%d", fiscalYear, formNo))
	m.released++
	return nil
}

var (
	requester   = domain.Actor{ID: "u-1", Name: "Sita Sharma", Designation: "Staff Nurse", Role: domain.RoleRequester}
	storeKeeper = domain.Actor{ID: "u-2", Name: "Ram Thapa", Designation: "Store Keeper", Role: domain.RoleStoreKeeper}
	approver    = domain.Actor{ID: "u-3", Name: "Hari Koirala", Designation: "Medical Superintendent", Role: domain.RoleApprover}
)

const fy = "2081/082"

func testCatalog() mockCatalog {
	return mockCatalog{
		{ID: "i-1", ItemName: "Paper", Unit: "packet", Category: domain.CategoryExpendable, FiscalYear: fy, CurrentQuantity: 2},
		{ID: "i-2", ItemName: "Chair", Unit: "piece", Category: domain.CategoryNonExpendable, FiscalYear: fy, CurrentQuantity: 4},
	}
}

func newTestService() (*DemandService, *mockRequestRepo, *mockReserver) {
	repo := newMockRequestRepo()
	reserver := newMockReserver()
	return NewDemandService(repo, testCatalog(), reserver, nil), repo, reserver
}

// submitNewPaperRequest files the standard stationery request as requester.
func submitNewPaperRequest(t *testing.T, svc *DemandService) domain.DemandRequest {
	t.Helper()
	ctx := context.Background()

	sess, err := svc.OpenSession(ctx, OpenOptions{Mode: workflow.ModeNew, Actor: requester, FiscalYear: fy})
	if err != nil {
		t.Fatalf("open session failed: %v", err)
	}
	line := sess.Draft().Items[0].ID
	sess.SetDate("2081/08/10")
	sess.SetPurpose("stationery")
	if err := sess.SelectItem(line, "i-1"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	sess.UpdateLineItem(line, workflow.FieldQuantity, "5")

	res, err := svc.Submit(ctx, sess)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return res.Request
}

func load(t *testing.T, svc *DemandService, actor domain.Actor, id string) *workflow.Session {
	t.Helper()
	sess, err := svc.OpenSession(context.Background(), OpenOptions{Mode: workflow.ModeEdit, Actor: actor, FiscalYear: fy, RequestID: id})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return sess
}

func TestApprovalChainEndToEnd(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created := submitNewPaperRequest(t, svc)
	if created.Status != domain.StatusPending {
		t.Errorf("expected Pending, got %s", created.Status)
	}
	if created.FormNo != 1 {
		t.Errorf("expected form number 1, got %d", created.FormNo)
	}
	if created.ID == "" || created.Version != 1 {
		t.Errorf("expected stored id and version 1, got %q v%d", created.ID, created.Version)
	}
	if created.Items[0].Unit != "packet" || created.Items[0].Quantity != "5" {
		t.Errorf("unexpected line %+v", created.Items[0])
	}

	res, err := svc.Submit(ctx, load(t, svc, storeKeeper, created.ID))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Kind != workflow.Transitioned || res.Request.Status != domain.StatusVerified {
		t.Errorf("expected Verified, got %s %s", res.Kind, res.Request.Status)
	}
	if res.Request.StoreKeeper.Name != storeKeeper.Name {
		t.Errorf("expected store keeper stamp, got %+v", res.Request.StoreKeeper)
	}

	res, err = svc.Submit(ctx, load(t, svc, approver, created.ID))
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if res.Request.Status != domain.StatusApproved {
		t.Fatalf("expected Approved, got %s", res.Request.Status)
	}
	want := domain.Signature{Name: approver.Name, Designation: approver.Designation, Date: "2081/08/10"}
	if res.Request.ApprovedBy != want {
		t.Errorf("expected approval stamp %+v, got %+v", want, res.Request.ApprovedBy)
	}
	if res.Request.FormNo != 1 {
		t.Errorf("form number changed to %d", res.Request.FormNo)
	}
}

func TestSubmitOnApprovedIsNoOp(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	created := submitNewPaperRequest(t, svc)
	svc.Submit(ctx, load(t, svc, storeKeeper, created.ID))
	approved, _ := svc.Submit(ctx, load(t, svc, approver, created.ID))
	savesBefore := repo.saves

	other := domain.Actor{Name: "Gita Rai", Designation: "Deputy Chief", Role: domain.RoleApprover}
	res, err := svc.Submit(ctx, load(t, svc, other, created.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != workflow.Denied || res.Request.Status != domain.StatusApproved {
		t.Errorf("expected denied no-op on Approved, got %s %s", res.Kind, res.Request.Status)
	}
	var denied *domain.RoleDeniedError
	if !errors.As(res.Denial, &denied) {
		t.Errorf("expected RoleDeniedError, got %v", res.Denial)
	}
	if res.Request.ApprovedBy != approved.Request.ApprovedBy {
		t.Errorf("approval re-stamped: %+v", res.Request.ApprovedBy)
	}
	if repo.saves != savesBefore {
		t.Error("expected no write for a read-only denied save")
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	sess, _ := svc.OpenSession(ctx, OpenOptions{Mode: workflow.ModeNew, Actor: requester, FiscalYear: fy})
	sess.SetPurpose("stationery")

	res, err := svc.Submit(ctx, sess)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "date" {
		t.Fatalf("expected date ValidationError, got %v", err)
	}
	if res.Kind != workflow.Invalid {
		t.Errorf("expected Invalid, got %s", res.Kind)
	}
	if repo.saves != 0 {
		t.Error("invalid request must not be persisted")
	}
}

func TestDeniedEditableSaveKeepsStatus(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	created := submitNewPaperRequest(t, svc)
	svc.Submit(ctx, load(t, svc, storeKeeper, created.ID))

	sess := load(t, svc, storeKeeper, created.ID)
	sess.UpdateLineItem(created.Items[0].ID, workflow.FieldRemarks, "urgent")
	res, err := svc.Submit(ctx, sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != workflow.Denied || res.Request.Status != domain.StatusVerified {
		t.Errorf("expected denied Verified, got %s %s", res.Kind, res.Request.Status)
	}
	stored, _ := repo.GetByID(ctx, created.ID)
	if stored.Items[0].Remarks != "urgent" {
		t.Error("expected edit to be persisted with unchanged status")
	}
}

func TestRejectAndResubmit(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created := submitNewPaperRequest(t, svc)
	svc.Submit(ctx, load(t, svc, storeKeeper, created.ID))

	sess := load(t, svc, approver, created.ID)
	if _, err := svc.Reject(ctx, sess, "  "); err == nil {
		t.Fatal("expected empty reason to fail")
	}
	res, err := svc.Reject(ctx, sess, "budget exhausted")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if res.Request.Status != domain.StatusRejected || res.Request.RejectionReason != "budget exhausted" {
		t.Errorf("unexpected rejected request %+v", res.Request)
	}
	if !res.Request.ApprovedBy.Empty() {
		t.Error("expected approval block cleared")
	}

	if _, err := svc.Resubmit(ctx, load(t, svc, storeKeeper, created.ID)); !errors.Is(err, domain.ErrNotResubmittable) {
		t.Errorf("expected ErrNotResubmittable, got %v", err)
	}

	own := load(t, svc, requester, created.ID)
	res, err = svc.Resubmit(ctx, own)
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if res.Request.Status != domain.StatusPending || res.Request.FormNo != created.FormNo || res.Request.RejectionReason != "" {
		t.Errorf("unexpected resubmitted request %+v", res.Request)
	}
	if !own.Editable() {
		t.Error("expected requester to edit the resubmitted request")
	}

	res, err = svc.Submit(ctx, load(t, svc, storeKeeper, created.ID))
	if err != nil || res.Request.Status != domain.StatusVerified {
		t.Errorf("expected re-verification, got %v %v", res, err)
	}
}

func TestRejectApprovedIsDenied(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created := submitNewPaperRequest(t, svc)
	svc.Submit(ctx, load(t, svc, storeKeeper, created.ID))
	svc.Submit(ctx, load(t, svc, approver, created.ID))

	res, err := svc.Reject(ctx, load(t, svc, approver, created.ID), "too late")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != workflow.Denied || res.Request.Status != domain.StatusApproved {
		t.Errorf("expected refusal from Approved, got %s %s", res.Kind, res.Request.Status)
	}
	if res.Request.ApprovedBy.Name != approver.Name {
		t.Error("approval must survive a refused rejection")
	}
}

func TestRejectNewSession(t *testing.T) {
	svc, _, _ := newTestService()
	sess, _ := svc.OpenSession(context.Background(), OpenOptions{Mode: workflow.ModeNew, Actor: approver, FiscalYear: fy})
	if _, err := svc.Reject(context.Background(), sess, "no"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestConcurrentNewRequestsConflict(t *testing.T) {
	svc, _, reserver := newTestService()
	ctx := context.Background()

	a, _ := svc.OpenSession(ctx, OpenOptions{Mode: workflow.ModeNew, Actor: requester, FiscalYear: fy})
	b, _ := svc.OpenSession(ctx, OpenOptions{Mode: workflow.ModeNew, Actor: requester, FiscalYear: fy})
	for _, s := range []*workflow.Session{a, b} {
		s.SetDate("2081/08/10")
		s.SetPurpose("stationery")
	}
	if a.Draft().FormNo != b.Draft().FormNo {
		t.Fatal("expected both snapshots to compute the same number")
	}

	if _, err := svc.Submit(ctx, a); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if _, err := svc.Submit(ctx, b); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	if reserver.released != 0 {
		t.Error("a refused reservation has nothing to release")
	}
}

func TestFailedSaveReleasesReservation(t *testing.T) {
	svc, repo, reserver := newTestService()
	ctx := context.Background()

	sess, _ := svc.OpenSession(ctx, OpenOptions{Mode: workflow.ModeNew, Actor: requester, FiscalYear: fy})
	sess.SetDate("2081/08/10")
	sess.SetPurpose("stationery")

	repo.failNext = errors.New("connection reset")
	if _, err := svc.Submit(ctx, sess); err == nil {
		t.Fatal("expected save error")
	}
	if reserver.released != 1 {
		t.Errorf("expected reservation released, got %d", reserver.released)
	}

	if _, err := svc.Submit(ctx, sess); err != nil {
		t.Errorf("expected retry with the same number to succeed, got %v", err)
	}
}

func TestCancelledSaveStillReleasesReservation(t *testing.T) {
	svc, repo, reserver := newTestService()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, _ := svc.OpenSession(ctx, OpenOptions{Mode: workflow.ModeNew, Actor: requester, FiscalYear: fy})
	sess.SetDate("2081/08/10")
	sess.SetPurpose("stationery")

	// The client goes away while the row is being written.
	repo.beforeSave = cancel
	_, err := svc.Submit(ctx, sess)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if reserver.released != 1 {
		t.Fatalf("expected reservation released despite cancellation, got %d", reserver.released)
	}
	repo.beforeSave = nil

	// The next requester in the same year gets form 1 instead of a conflict.
	next, err := svc.OpenSession(context.Background(), OpenOptions{Mode: workflow.ModeNew, Actor: requester, FiscalYear: fy})
	if err != nil {
		t.Fatalf("open session failed: %v", err)
	}
	next.SetDate("2081/08/11")
	next.SetPurpose("stationery")
	result, err := svc.Submit(context.Background(), next)
	if err != nil {
		t.Fatalf("expected next submit to succeed, got %v", err)
	}
	if result.Request.FormNo != 1 {
		t.Errorf("expected form 1, got %d", result.Request.FormNo)
	}
}

type refreshingCatalog struct {
	mockCatalog
	refreshes int
}

func (r *refreshingCatalog) RefreshInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	r.refreshes++
	return r.mockCatalog, nil
}

func TestRefreshCatalog(t *testing.T) {
	catalog := &refreshingCatalog{mockCatalog: testCatalog()}
	svc := NewDemandService(newMockRequestRepo(), catalog, nil, nil)
	ctx := context.Background()

	if _, err := svc.RefreshCatalog(ctx, requester); !errors.Is(err, domain.ErrRefreshDenied) {
		t.Errorf("expected ErrRefreshDenied for requester, got %v", err)
	}
	for _, actor := range []domain.Actor{storeKeeper, approver} {
		items, err := svc.RefreshCatalog(ctx, actor)
		if err != nil || len(items) != 2 {
			t.Errorf("%s: unexpected refresh result %v %v", actor.Role, items, err)
		}
	}
	if catalog.refreshes != 2 {
		t.Errorf("expected 2 refreshes, got %d", catalog.refreshes)
	}

	// Sources without a cache are re-read.
	plain, _, _ := newTestService()
	if items, err := plain.RefreshCatalog(ctx, approver); err != nil || len(items) != 2 {
		t.Errorf("unexpected plain refresh result %v %v", items, err)
	}
}

func TestStaleSessionConflict(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created := submitNewPaperRequest(t, svc)
	first := load(t, svc, storeKeeper, created.ID)
	second := load(t, svc, storeKeeper, created.ID)

	if _, err := svc.Submit(ctx, first); err != nil {
		t.Fatalf("first verify failed: %v", err)
	}
	if _, err := svc.Submit(ctx, second); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for stale session, got %v", err)
	}
}

func TestVerifyReportsStockShortfalls(t *testing.T) {
	svc, _, _ := newTestService()
	created := submitNewPaperRequest(t, svc)

	res, err := svc.Submit(context.Background(), load(t, svc, storeKeeper, created.ID))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "Paper" {
		t.Errorf("expected Paper shortfall, got %v", res.Warnings)
	}
}

func TestViewSessionCannotSubmit(t *testing.T) {
	svc, _, _ := newTestService()
	created := submitNewPaperRequest(t, svc)

	sess, err := svc.OpenSession(context.Background(), OpenOptions{Mode: workflow.ModeView, Actor: requester, RequestID: created.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Submit(context.Background(), sess); !errors.Is(err, domain.ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestOpenSessionUnknownRequest(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.OpenSession(context.Background(), OpenOptions{Mode: workflow.ModeEdit, Actor: requester, RequestID: "missing"})
	if !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestQueues(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first := submitNewPaperRequest(t, svc)
	second := submitNewPaperRequest(t, svc)
	third := submitNewPaperRequest(t, svc)
	svc.Submit(ctx, load(t, svc, storeKeeper, second.ID))

	pending, err := svc.PendingFor(ctx, storeKeeper, fy)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ID != third.ID || pending[1].ID != first.ID {
		t.Errorf("expected [third first], got %+v", pending)
	}

	verified, _ := svc.PendingFor(ctx, approver, fy)
	if len(verified) != 1 || verified[0].ID != second.ID {
		t.Errorf("expected [second], got %+v", verified)
	}

	none, _ := svc.PendingFor(ctx, requester, fy)
	if len(none) != 0 {
		t.Errorf("requesters have no queue, got %d", len(none))
	}

	mine, _ := svc.SubmittedBy(ctx, requester, fy)
	if len(mine) != 3 || mine[0].FormNo != 3 {
		t.Errorf("expected three own requests newest first, got %+v", mine)
	}

	next, _ := svc.NextFormNumber(ctx, fy)
	if next != 4 {
		t.Errorf("expected next number 4, got %d", next)
	}
}

func TestChangeFiscalYear(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	submitNewPaperRequest(t, svc)

	sess, _ := svc.OpenSession(ctx, OpenOptions{Mode: workflow.ModeNew, Actor: requester, FiscalYear: fy})
	if sess.Draft().FormNo != 2 {
		t.Fatalf("expected 2, got %d", sess.Draft().FormNo)
	}
	if err := svc.ChangeFiscalYear(ctx, sess, "2082/083"); err != nil {
		t.Fatal(err)
	}
	if sess.Draft().FormNo != 1 || sess.Draft().FiscalYear != "2082/083" {
		t.Errorf("expected form 1 of 2082/083, got %d of %s", sess.Draft().FormNo, sess.Draft().FiscalYear)
	}
}
