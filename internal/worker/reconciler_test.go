package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriplan/nutriplan-api/internal/identity"
	"github.com/nutriplan/nutriplan-api/internal/model"
	"github.com/nutriplan/nutriplan-api/pkg/logger"
)

type fakeProvisioner struct {
	deleted []uuid.UUID
}

func (f *fakeProvisioner) CreateAccount(_ context.Context, _ identity.CreateAccountParams) (*model.Account, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvisioner) InviteByEmail(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeProvisioner) DeleteAccount(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePatientRepo struct {
	pending  []*model.Patient
	byAuth   map[uuid.UUID]*model.Patient
	statuses map[uuid.UUID]model.ProvisioningStatus
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{
		byAuth:   map[uuid.UUID]*model.Patient{},
		statuses: map[uuid.UUID]model.ProvisioningStatus{},
	}
}

func (f *fakePatientRepo) Create(_ context.Context, p *model.Patient) (*model.Patient, error) {
	return p, nil
}

func (f *fakePatientRepo) Get(_ context.Context, _ uuid.UUID) (*model.Patient, error) {
	return nil, errors.New("not used")
}

func (f *fakePatientRepo) GetByAuthUser(_ context.Context, authUserID uuid.UUID) (*model.Patient, error) {
	p, ok := f.byAuth[authUserID]
	if !ok {
		return nil, errors.New("patient not found")
	}
	return p, nil
}

func (f *fakePatientRepo) Update(_ context.Context, _ *model.Patient) error { return nil }
func (f *fakePatientRepo) Delete(_ context.Context, _ uuid.UUID) error     { return nil }

func (f *fakePatientRepo) ListByNutritionist(_ context.Context, _ uuid.UUID) ([]*model.Patient, error) {
	return nil, nil
}

func (f *fakePatientRepo) UpdateProvisioningStatus(_ context.Context, id uuid.UUID, status model.ProvisioningStatus) error {
	f.statuses[id] = status
	return nil
}

func (f *fakePatientRepo) ListPendingInvites(_ context.Context, _ time.Time, _ int) ([]*model.Patient, error) {
	return f.pending, nil
}

type fakeInviter struct {
	sent []string
	fail error
}

func (f *fakeInviter) SendInvite(_ context.Context, email, _ string) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, email)
	return nil
}

type fakeBroker struct {
	ch chan []byte
}

func (f *fakeBroker) Publish(_ context.Context, _ string, _ interface{}) error { return nil }

func (f *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return f.ch, nil
}

func (f *fakeBroker) Close() error { return nil }

func newReconcilerForTest(patients *fakePatientRepo, prov *fakeProvisioner, inviter *fakeInviter) *Reconciler {
	return NewReconciler(
		patients,
		prov,
		inviter,
		&fakeBroker{ch: make(chan []byte, 1)},
		ReconcilerConfig{},
		logger.NewLogger(nil),
		nil,
	)
}

func TestHandleCompensationDeletesOrphanAccount(t *testing.T) {
	patients := newFakePatientRepo()
	prov := &fakeProvisioner{}
	r := newReconcilerForTest(patients, prov, &fakeInviter{})

	accountID := uuid.New()
	msg, err := json.Marshal(model.CompensateAccountPayload{AccountID: accountID, Email: "a@b.com"})
	require.NoError(t, err)

	r.handleCompensation(context.Background(), msg)

	require.Len(t, prov.deleted, 1)
	assert.Equal(t, accountID, prov.deleted[0])
}

func TestHandleCompensationSkipsLinkedAccount(t *testing.T) {
	patients := newFakePatientRepo()
	prov := &fakeProvisioner{}
	r := newReconcilerForTest(patients, prov, &fakeInviter{})

	// The patient row exists, so the account is not an orphan.
	accountID := uuid.New()
	patients.byAuth[accountID] = &model.Patient{Base: model.Base{ID: uuid.New()}}

	msg, err := json.Marshal(model.CompensateAccountPayload{AccountID: accountID, Email: "a@b.com"})
	require.NoError(t, err)

	r.handleCompensation(context.Background(), msg)

	assert.Empty(t, prov.deleted)
}

func TestHandleCompensationIgnoresMalformedPayload(t *testing.T) {
	prov := &fakeProvisioner{}
	r := newReconcilerForTest(newFakePatientRepo(), prov, &fakeInviter{})

	r.handleCompensation(context.Background(), []byte("{not json"))

	assert.Empty(t, prov.deleted)
}

func TestRetryPendingInvites(t *testing.T) {
	patients := newFakePatientRepo()
	inviter := &fakeInviter{}
	r := newReconcilerForTest(patients, &fakeProvisioner{}, inviter)

	stuck := &model.Patient{
		Base:               model.Base{ID: uuid.New()},
		Email:              "a@b.com",
		Name:               "Ana",
		ProvisioningStatus: model.ProvisioningPendingInvite,
	}
	patients.pending = []*model.Patient{stuck}

	require.NoError(t, r.retryPendingInvites(context.Background()))

	assert.Equal(t, []string{"a@b.com"}, inviter.sent)
	assert.Equal(t, model.ProvisioningComplete, patients.statuses[stuck.ID])
}

func TestRetryPendingInvitesLeavesStatusOnFailure(t *testing.T) {
	patients := newFakePatientRepo()
	inviter := &fakeInviter{fail: errors.New("smtp timeout")}
	r := newReconcilerForTest(patients, &fakeProvisioner{}, inviter)

	stuck := &model.Patient{
		Base:               model.Base{ID: uuid.New()},
		Email:              "a@b.com",
		Name:               "Ana",
		ProvisioningStatus: model.ProvisioningPendingInvite,
	}
	patients.pending = []*model.Patient{stuck}

	require.NoError(t, r.retryPendingInvites(context.Background()))

	assert.Empty(t, inviter.sent)
	_, updated := patients.statuses[stuck.ID]
	assert.False(t, updated)
}
