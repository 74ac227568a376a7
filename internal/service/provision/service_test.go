package provision

import (
	"context"
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

// fakeProvisioner is an in-memory identity provider. It rejects duplicate
// emails, like the real one.
type fakeProvisioner struct {
	accounts    []*model.Account
	createCalls int
	inviteCalls int
	deleteCalls int
	failCreate  error
	lastParams  identity.CreateAccountParams
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{}
}

func (f *fakeProvisioner) CreateAccount(_ context.Context, params identity.CreateAccountParams) (*model.Account, error) {
	f.createCalls++
	f.lastParams = params
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	if f.hasAccountFor(params.Email) {
		return nil, identity.ErrEmailExists
	}
	account := &model.Account{
		ID:    uuid.New(),
		Email: params.Email,
		Role:  params.Role,
		Name:  params.Name,
	}
	f.accounts = append(f.accounts, account)
	return account, nil
}

func (f *fakeProvisioner) InviteByEmail(_ context.Context, email, redirectTo string) error {
	f.inviteCalls++
	return nil
}

func (f *fakeProvisioner) DeleteAccount(_ context.Context, id uuid.UUID) error {
	f.deleteCalls++
	kept := f.accounts[:0]
	for _, a := range f.accounts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	f.accounts = kept
	return nil
}

func (f *fakeProvisioner) hasAccountFor(email string) bool {
	for _, a := range f.accounts {
		if a.Email == email {
			return true
		}
	}
	return false
}

// fakePatientRepo is an in-memory patient store.
type fakePatientRepo struct {
	rows        map[uuid.UUID]*model.Patient
	createCalls int
	failCreate  error
	lastCreated *model.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{rows: map[uuid.UUID]*model.Patient{}}
}

func (f *fakePatientRepo) Create(_ context.Context, patient *model.Patient) (*model.Patient, error) {
	f.createCalls++
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	stored := *patient
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = time.Now()
	f.rows[stored.ID] = &stored
	f.lastCreated = &stored
	return &stored, nil
}

func (f *fakePatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, errors.New("patient not found")
	}
	return p, nil
}

func (f *fakePatientRepo) GetByAuthUser(_ context.Context, authUserID uuid.UUID) (*model.Patient, error) {
	for _, p := range f.rows {
		if p.AuthUserID != nil && *p.AuthUserID == authUserID {
			return p, nil
		}
	}
	return nil, errors.New("patient not found")
}

func (f *fakePatientRepo) Update(_ context.Context, patient *model.Patient) error {
	f.rows[patient.ID] = patient
	return nil
}

func (f *fakePatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.rows, id)
	return nil
}

func (f *fakePatientRepo) ListByNutritionist(_ context.Context, nutritionistID uuid.UUID) ([]*model.Patient, error) {
	var out []*model.Patient
	for _, p := range f.rows {
		if p.NutritionistID == nutritionistID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePatientRepo) UpdateProvisioningStatus(_ context.Context, id uuid.UUID, status model.ProvisioningStatus) error {
	p, ok := f.rows[id]
	if !ok {
		return errors.New("patient not found")
	}
	p.ProvisioningStatus = status
	return nil
}

func (f *fakePatientRepo) ListPendingInvites(_ context.Context, olderThan time.Time, limit int) ([]*model.Patient, error) {
	var out []*model.Patient
	for _, p := range f.rows {
		if p.ProvisioningStatus == model.ProvisioningPendingInvite {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeInviter records invite dispatches.
type fakeInviter struct {
	calls     int
	lastEmail string
	fail      error
}

func (f *fakeInviter) SendInvite(_ context.Context, email, name string) error {
	f.calls++
	f.lastEmail = email
	if f.fail != nil {
		return f.fail
	}
	return nil
}

// fakeOutbox records emitted events.
type fakeOutbox struct {
	events []*model.OutboxEvent
}

func (f *fakeOutbox) Create(_ context.Context, event *model.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeOutbox) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	return nil
}

func (f *fakeOutbox) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeOutbox) typesEmitted() []string {
	var out []string
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

type testEnv struct {
	svc         *Service
	provisioner *fakeProvisioner
	patients    *fakePatientRepo
	inviter     *fakeInviter
	outbox      *fakeOutbox
}

func newTestEnv() *testEnv {
	provisioner := newFakeProvisioner()
	patients := newFakePatientRepo()
	inviter := &fakeInviter{}
	outbox := &fakeOutbox{}
	svc := NewService(provisioner, patients, inviter, outbox, logger.NewLogger(nil))
	return &testEnv{svc: svc, provisioner: provisioner, patients: patients, inviter: inviter, outbox: outbox}
}

func validRequest() *model.ProvisionPatientRequest {
	return &model.ProvisionPatientRequest{
		PatientData: model.PatientData{
			Email: "a@b.com",
			Name:  "Ana",
		},
		NutritionistID: uuid.New().String(),
	}
}

func TestProvisionPatientValidationGate(t *testing.T) {
	cases := map[string]func(*model.ProvisionPatientRequest){
		"missing email":           func(r *model.ProvisionPatientRequest) { r.PatientData.Email = "" },
		"missing name":            func(r *model.ProvisionPatientRequest) { r.PatientData.Name = "" },
		"missing nutritionist id": func(r *model.ProvisionPatientRequest) { r.NutritionistID = "" },
		"malformed email":         func(r *model.ProvisionPatientRequest) { r.PatientData.Email = "not-an-email" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv()
			req := validRequest()
			mutate(req)

			_, err := env.svc.ProvisionPatient(context.Background(), req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Fields)

			// No remote dependency may be touched before validation passes.
			assert.Zero(t, env.provisioner.createCalls)
			assert.Zero(t, env.patients.createCalls)
			assert.Zero(t, env.inviter.calls)
		})
	}
}

func TestProvisionPatientValidationReportsAllFields(t *testing.T) {
	env := newTestEnv()
	req := validRequest()
	req.PatientData.Email = ""
	req.PatientData.Name = ""

	_, err := env.svc.ProvisionPatient(context.Background(), req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "name")
}

func TestProvisionPatientHappyPath(t *testing.T) {
	env := newTestEnv()
	nutritionistID := uuid.New()
	req := &model.ProvisionPatientRequest{
		PatientData:    model.PatientData{Email: "a@b.com", Name: "Ana"},
		NutritionistID: nutritionistID.String(),
	}

	patient, err := env.svc.ProvisionPatient(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, patient)

	// Step 1: exactly one account, role patient, pre-confirmed.
	assert.Equal(t, 1, env.provisioner.createCalls)
	assert.Equal(t, model.RolePatient, env.provisioner.lastParams.Role)
	assert.True(t, env.provisioner.lastParams.EmailConfirm)
	assert.Equal(t, "Ana", env.provisioner.lastParams.Name)
	assert.NotEmpty(t, env.provisioner.lastParams.Password)

	// Step 2: exactly one row, linked to the new account and nutritionist.
	assert.Equal(t, 1, env.patients.createCalls)
	require.NotNil(t, patient.AuthUserID)
	assert.True(t, env.provisioner.hasAccountFor("a@b.com"))
	assert.Equal(t, nutritionistID, patient.NutritionistID)

	// Step 3: exactly one invite, to the patient's address.
	assert.Equal(t, 1, env.inviter.calls)
	assert.Equal(t, "a@b.com", env.inviter.lastEmail)

	// The returned row is the persisted one, marked complete.
	assert.NotEqual(t, uuid.Nil, patient.ID)
	assert.Equal(t, model.ProvisioningComplete, patient.ProvisioningStatus)
	assert.Contains(t, env.outbox.typesEmitted(), model.EventPatientProvisioned)
}

func TestProvisionPatientAccountStageFailure(t *testing.T) {
	env := newTestEnv()
	env.provisioner.failCreate = errors.New("identity provider unreachable")

	_, err := env.svc.ProvisionPatient(context.Background(), validRequest())

	var perr *ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageAccount, perr.Stage)
	assert.Zero(t, env.patients.createCalls)
	assert.Zero(t, env.inviter.calls)
}

func TestProvisionPatientRecordStageFailureLeavesOrphanAccount(t *testing.T) {
	env := newTestEnv()
	env.patients.failCreate = errors.New("unique constraint violation")

	_, err := env.svc.ProvisionPatient(context.Background(), validRequest())

	var perr *ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageRecord, perr.Stage)

	// The account from step 1 is not rolled back synchronously.
	assert.True(t, env.provisioner.hasAccountFor("a@b.com"))
	assert.Zero(t, env.provisioner.deleteCalls)
	assert.Zero(t, env.inviter.calls)

	// It is recorded for asynchronous compensation instead.
	assert.Contains(t, env.outbox.typesEmitted(), model.EventCompensateAccount)
}

func TestProvisionPatientInviteStageFailureLeavesRecord(t *testing.T) {
	env := newTestEnv()
	env.inviter.fail = errors.New("smtp timeout")

	_, err := env.svc.ProvisionPatient(context.Background(), validRequest())

	var perr *ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageInvite, perr.Stage)

	// Both the account and the patient row persist.
	assert.True(t, env.provisioner.hasAccountFor("a@b.com"))
	require.NotNil(t, env.patients.lastCreated)
	stored, getErr := env.patients.Get(context.Background(), env.patients.lastCreated.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.ProvisioningPendingInvite, stored.ProvisioningStatus)
	assert.Contains(t, env.outbox.typesEmitted(), model.EventInvitePending)
}

func TestProvisionPatientDuplicateEmailIsNotIdempotent(t *testing.T) {
	env := newTestEnv()

	first := validRequest()
	_, err := env.svc.ProvisionPatient(context.Background(), first)
	require.NoError(t, err)

	// The identity fake rejects duplicates, so the second attempt must fail
	// deterministically at the account stage, before the record step.
	second := validRequest()
	second.PatientData.Email = first.PatientData.Email
	_, err = env.svc.ProvisionPatient(context.Background(), second)

	var perr *ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageAccount, perr.Stage)
	assert.ErrorIs(t, err, identity.ErrEmailExists)
	assert.Equal(t, 1, env.patients.createCalls)
}

func TestProvisionPatientOmittedOptionalFieldsStayNull(t *testing.T) {
	env := newTestEnv()

	patient, err := env.svc.ProvisionPatient(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Nil(t, patient.Phone)
	assert.Nil(t, patient.Gender)
	assert.Nil(t, patient.BirthDate)
	assert.Nil(t, patient.Height)
	assert.Nil(t, patient.InitialWeight)
	assert.Nil(t, patient.Goal)
	assert.Nil(t, patient.BodyFatPercentage)
	assert.Nil(t, patient.BMR)
}

func TestProvisionPatientOptionalFieldsCarriedThrough(t *testing.T) {
	env := newTestEnv()
	height := 172.0
	goal := "lose weight"
	req := validRequest()
	req.PatientData.Height = &height
	req.PatientData.Goal = &goal

	patient, err := env.svc.ProvisionPatient(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, patient.Height)
	assert.Equal(t, 172.0, *patient.Height)
	require.NotNil(t, patient.Goal)
	assert.Equal(t, "lose weight", *patient.Goal)
}

func TestResendInvite(t *testing.T) {
	env := newTestEnv()
	env.inviter.fail = errors.New("smtp timeout")

	_, err := env.svc.ProvisionPatient(context.Background(), validRequest())
	require.Error(t, err)
	require.NotNil(t, env.patients.lastCreated)

	env.inviter.fail = nil
	err = env.svc.ResendInvite(context.Background(), env.patients.lastCreated.ID)
	require.NoError(t, err)

	stored, err := env.patients.Get(context.Background(), env.patients.lastCreated.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProvisioningComplete, stored.ProvisioningStatus)
	assert.Equal(t, 2, env.inviter.calls)
}
