package diet

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriplan/nutriplan-api/internal/model"
	apperrors "github.com/nutriplan/nutriplan-api/pkg/errors"
	"github.com/nutriplan/nutriplan-api/pkg/logger"
)

type fakeDietRepo struct {
	diets         map[uuid.UUID]*model.Diet
	meals         map[uuid.UUID]*model.Meal
	items         map[uuid.UUID]*model.FoodItem
	activateCalls int
	deactivated   []uuid.UUID
}

func newFakeDietRepo() *fakeDietRepo {
	return &fakeDietRepo{
		diets: map[uuid.UUID]*model.Diet{},
		meals: map[uuid.UUID]*model.Meal{},
		items: map[uuid.UUID]*model.FoodItem{},
	}
}

func (f *fakeDietRepo) Create(_ context.Context, diet *model.Diet) (*model.Diet, error) {
	stored := *diet
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	f.diets[stored.ID] = &stored
	return &stored, nil
}

func (f *fakeDietRepo) Get(_ context.Context, id uuid.UUID) (*model.Diet, error) {
	d, ok := f.diets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

func (f *fakeDietRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Diet, error) {
	var out []*model.Diet
	for _, d := range f.diets {
		if d.PatientID == patientID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDietRepo) Update(_ context.Context, diet *model.Diet) error {
	f.diets[diet.ID] = diet
	return nil
}

func (f *fakeDietRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.diets[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.diets, id)
	return nil
}

func (f *fakeDietRepo) Activate(_ context.Context, patientID, dietID uuid.UUID) error {
	f.activateCalls++
	for _, d := range f.diets {
		if d.PatientID == patientID {
			d.IsActive = d.ID == dietID
		}
	}
	return nil
}

func (f *fakeDietRepo) DeactivateOthers(_ context.Context, patientID, keepID uuid.UUID) error {
	for _, d := range f.diets {
		if d.PatientID == patientID && d.ID != keepID {
			d.IsActive = false
			f.deactivated = append(f.deactivated, d.ID)
		}
	}
	return nil
}

func (f *fakeDietRepo) SetPDFKey(_ context.Context, id uuid.UUID, key string) error {
	d, ok := f.diets[id]
	if !ok {
		return sql.ErrNoRows
	}
	d.DietPDFKey = &key
	return nil
}

func (f *fakeDietRepo) CreateMeal(_ context.Context, meal *model.Meal) (*model.Meal, error) {
	stored := *meal
	stored.ID = uuid.New()
	f.meals[stored.ID] = &stored
	return &stored, nil
}

func (f *fakeDietRepo) GetMeal(_ context.Context, id uuid.UUID) (*model.Meal, error) {
	m, ok := f.meals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return m, nil
}

func (f *fakeDietRepo) ListMeals(_ context.Context, dietID uuid.UUID) ([]*model.Meal, error) {
	var out []*model.Meal
	for _, m := range f.meals {
		if m.DietID == dietID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeDietRepo) UpdateMeal(_ context.Context, meal *model.Meal) error {
	f.meals[meal.ID] = meal
	return nil
}

func (f *fakeDietRepo) DeleteMeal(_ context.Context, id uuid.UUID) error {
	if _, ok := f.meals[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.meals, id)
	return nil
}

func (f *fakeDietRepo) CreateFoodItem(_ context.Context, item *model.FoodItem) (*model.FoodItem, error) {
	stored := *item
	stored.ID = uuid.New()
	f.items[stored.ID] = &stored
	return &stored, nil
}

func (f *fakeDietRepo) GetFoodItem(_ context.Context, id uuid.UUID) (*model.FoodItem, error) {
	i, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return i, nil
}

func (f *fakeDietRepo) ListFoodItems(_ context.Context, mealID uuid.UUID) ([]*model.FoodItem, error) {
	var out []*model.FoodItem
	for _, i := range f.items {
		if i.MealID == mealID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeDietRepo) DeleteFoodItem(_ context.Context, id uuid.UUID) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

type fakePatientRepo struct {
	rows map[uuid.UUID]*model.Patient
}

func (f *fakePatientRepo) Create(_ context.Context, p *model.Patient) (*model.Patient, error) {
	return p, nil
}

func (f *fakePatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakePatientRepo) GetByAuthUser(_ context.Context, _ uuid.UUID) (*model.Patient, error) {
	return nil, sql.ErrNoRows
}

func (f *fakePatientRepo) Update(_ context.Context, _ *model.Patient) error { return nil }
func (f *fakePatientRepo) Delete(_ context.Context, _ uuid.UUID) error     { return nil }

func (f *fakePatientRepo) ListByNutritionist(_ context.Context, _ uuid.UUID) ([]*model.Patient, error) {
	return nil, nil
}

func (f *fakePatientRepo) UpdateProvisioningStatus(_ context.Context, _ uuid.UUID, _ model.ProvisioningStatus) error {
	return nil
}

func (f *fakePatientRepo) ListPendingInvites(_ context.Context, _ time.Time, _ int) ([]*model.Patient, error) {
	return nil, nil
}

type fakeOutbox struct {
	events []*model.OutboxEvent
}

func (f *fakeOutbox) Create(_ context.Context, event *model.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) GetPendingEvents(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutbox) UpdateStatus(_ context.Context, _ uuid.UUID, _ model.OutboxStatus, _ *string) error {
	return nil
}

func (f *fakeOutbox) DeleteProcessedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type testEnv struct {
	svc            *Service
	repo           *fakeDietRepo
	outbox         *fakeOutbox
	nutritionistID uuid.UUID
	patientID      uuid.UUID
}

func newTestEnv() *testEnv {
	nutritionistID := uuid.New()
	patientID := uuid.New()
	patients := &fakePatientRepo{rows: map[uuid.UUID]*model.Patient{
		patientID: {
			Base:           model.Base{ID: patientID},
			NutritionistID: nutritionistID,
			Name:           "Ana",
			Email:          "a@b.com",
		},
	}}
	repo := newFakeDietRepo()
	outbox := &fakeOutbox{}
	svc := NewService(repo, patients, outbox, logger.NewLogger(nil))
	return &testEnv{svc: svc, repo: repo, outbox: outbox, nutritionistID: nutritionistID, patientID: patientID}
}

func validCreateRequest(env *testEnv) *model.CreateDietRequest {
	return &model.CreateDietRequest{
		PatientID: env.patientID.String(),
		Name:      "Cutting phase",
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateDiet(t *testing.T) {
	env := newTestEnv()
	calories := 1800.0
	req := validCreateRequest(env)
	req.Goals = &model.DietGoals{Calories: &calories}

	d, err := env.svc.Create(context.Background(), env.nutritionistID, req)
	require.NoError(t, err)

	assert.Equal(t, env.patientID, d.PatientID)
	assert.Equal(t, env.nutritionistID, d.NutritionistID)
	require.NotNil(t, d.Goals)
	assert.Equal(t, 1800.0, *d.Goals.Calories)

	require.Len(t, env.outbox.events, 1)
	assert.Equal(t, model.EventDietCreated, env.outbox.events[0].EventType)
}

func TestCreateDietRejectsEndBeforeStart(t *testing.T) {
	env := newTestEnv()
	req := validCreateRequest(env)
	end := req.StartDate.AddDate(0, 0, -1)
	req.EndDate = &end

	_, err := env.svc.Create(context.Background(), env.nutritionistID, req)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
	assert.Empty(t, env.repo.diets)
}

func TestCreateDietRejectsNegativeGoals(t *testing.T) {
	env := newTestEnv()
	protein := -10.0
	req := validCreateRequest(env)
	req.Goals = &model.DietGoals{Protein: &protein}

	_, err := env.svc.Create(context.Background(), env.nutritionistID, req)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestCreateDietEnforcesOwnership(t *testing.T) {
	env := newTestEnv()
	req := validCreateRequest(env)

	// A different nutritionist cannot create a diet for this patient.
	_, err := env.svc.Create(context.Background(), uuid.New(), req)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestDietHiddenFromOtherNutritionists(t *testing.T) {
	env := newTestEnv()
	d, err := env.svc.Create(context.Background(), env.nutritionistID, validCreateRequest(env))
	require.NoError(t, err)
	stranger := uuid.New()

	var appErr *apperrors.AppError

	_, err = env.svc.Get(context.Background(), stranger, d.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)

	_, err = env.svc.Update(context.Background(), stranger, d.ID, &model.UpdateDietRequest{})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)

	err = env.svc.Activate(context.Background(), stranger, d.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)

	err = env.svc.Delete(context.Background(), stranger, d.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)

	// The row is untouched and still readable by its owner.
	owned, err := env.svc.Get(context.Background(), env.nutritionistID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, owned.ID)
}

func TestListByPatientHiddenFromOtherNutritionists(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Create(context.Background(), env.nutritionistID, validCreateRequest(env))
	require.NoError(t, err)

	_, err = env.svc.ListByPatient(context.Background(), uuid.New(), env.patientID)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestMealOpsHiddenFromOtherNutritionists(t *testing.T) {
	env := newTestEnv()
	d, err := env.svc.Create(context.Background(), env.nutritionistID, validCreateRequest(env))
	require.NoError(t, err)
	meal, err := env.svc.AddMeal(context.Background(), env.nutritionistID, d.ID, &model.CreateMealRequest{Name: "Lunch"})
	require.NoError(t, err)
	stranger := uuid.New()

	var appErr *apperrors.AppError

	_, err = env.svc.AddMeal(context.Background(), stranger, d.ID, &model.CreateMealRequest{Name: "Snack"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)

	err = env.svc.DeleteMeal(context.Background(), stranger, meal.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
	assert.Contains(t, env.repo.meals, meal.ID)

	_, err = env.svc.AddFoodItem(context.Background(), stranger, meal.ID, &model.CreateFoodItemRequest{Name: "Rice", Quantity: "100g"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestCreateActiveDietDeactivatesOthers(t *testing.T) {
	env := newTestEnv()

	older, err := env.svc.Create(context.Background(), env.nutritionistID, validCreateRequest(env))
	require.NoError(t, err)
	env.repo.diets[older.ID].IsActive = true

	req := validCreateRequest(env)
	req.IsActive = true
	newer, err := env.svc.Create(context.Background(), env.nutritionistID, req)
	require.NoError(t, err)

	assert.Contains(t, env.repo.deactivated, older.ID)
	assert.False(t, env.repo.diets[older.ID].IsActive)
	assert.True(t, env.repo.diets[newer.ID].IsActive)
}

func TestActivateSwitchesActiveDiet(t *testing.T) {
	env := newTestEnv()

	first, err := env.svc.Create(context.Background(), env.nutritionistID, validCreateRequest(env))
	require.NoError(t, err)
	second, err := env.svc.Create(context.Background(), env.nutritionistID, validCreateRequest(env))
	require.NoError(t, err)
	env.repo.diets[first.ID].IsActive = true

	require.NoError(t, env.svc.Activate(context.Background(), env.nutritionistID, second.ID))

	assert.Equal(t, 1, env.repo.activateCalls)
	assert.False(t, env.repo.diets[first.ID].IsActive)
	assert.True(t, env.repo.diets[second.ID].IsActive)
}

func TestGetDietLoadsMealsAndGoals(t *testing.T) {
	env := newTestEnv()
	calories := 2000.0
	goals := &model.DietGoals{Calories: &calories}
	raw, err := json.Marshal(goals)
	require.NoError(t, err)

	dietID := uuid.New()
	env.repo.diets[dietID] = &model.Diet{
		Base:      model.Base{ID: dietID},
		PatientID: env.patientID,
		Name:      "Bulking phase",
		GoalsJSON: raw,
	}

	mealTime := "08:00"
	meal, err := env.repo.CreateMeal(context.Background(), &model.Meal{
		DietID: dietID,
		Name:   "Breakfast",
		Time:   &mealTime,
	})
	require.NoError(t, err)
	_, err = env.repo.CreateFoodItem(context.Background(), &model.FoodItem{
		MealID:   meal.ID,
		Name:     "Oats",
		Quantity: "80g",
	})
	require.NoError(t, err)

	d, err := env.svc.Get(context.Background(), env.nutritionistID, dietID)
	require.NoError(t, err)

	require.NotNil(t, d.Goals)
	assert.Equal(t, 2000.0, *d.Goals.Calories)
	require.Len(t, d.Meals, 1)
	require.Len(t, d.Meals[0].FoodItems, 1)
	assert.Equal(t, "Oats", d.Meals[0].FoodItems[0].Name)
}

func TestUpdateDietAppliesPartialFields(t *testing.T) {
	env := newTestEnv()
	d, err := env.svc.Create(context.Background(), env.nutritionistID, validCreateRequest(env))
	require.NoError(t, err)

	name := "Maintenance phase"
	calories := 2200.0
	updated, err := env.svc.Update(context.Background(), env.nutritionistID, d.ID, &model.UpdateDietRequest{
		Name:  &name,
		Goals: &model.DietGoals{Calories: &calories},
	})
	require.NoError(t, err)

	assert.Equal(t, "Maintenance phase", updated.Name)
	require.NotNil(t, updated.Goals)
	assert.Equal(t, 2200.0, *updated.Goals.Calories)
	// Untouched fields survive.
	assert.Equal(t, d.StartDate, updated.StartDate)
}

func TestUpdateDietRejectsEndBeforeStart(t *testing.T) {
	env := newTestEnv()
	d, err := env.svc.Create(context.Background(), env.nutritionistID, validCreateRequest(env))
	require.NoError(t, err)

	end := d.StartDate.AddDate(0, 0, -1)
	_, err = env.svc.Update(context.Background(), env.nutritionistID, d.ID, &model.UpdateDietRequest{EndDate: &end})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestUpdateMeal(t *testing.T) {
	env := newTestEnv()
	d, err := env.svc.Create(context.Background(), env.nutritionistID, validCreateRequest(env))
	require.NoError(t, err)
	meal, err := env.svc.AddMeal(context.Background(), env.nutritionistID, d.ID, &model.CreateMealRequest{Name: "Lunch"})
	require.NoError(t, err)

	name := "Dinner"
	mealTime := "19:30"
	require.NoError(t, env.svc.UpdateMeal(context.Background(), env.nutritionistID, meal.ID, &model.UpdateMealRequest{
		Name: &name,
		Time: &mealTime,
	}))

	stored := env.repo.meals[meal.ID]
	assert.Equal(t, "Dinner", stored.Name)
	require.NotNil(t, stored.Time)
	assert.Equal(t, "19:30", *stored.Time)
}

func TestUpdateMissingMeal(t *testing.T) {
	env := newTestEnv()
	name := "Dinner"

	err := env.svc.UpdateMeal(context.Background(), env.nutritionistID, uuid.New(), &model.UpdateMealRequest{Name: &name})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestAddMealToMissingDiet(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.AddMeal(context.Background(), env.nutritionistID, uuid.New(), &model.CreateMealRequest{Name: "Lunch"})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestDeleteMissingDiet(t *testing.T) {
	env := newTestEnv()

	err := env.svc.Delete(context.Background(), env.nutritionistID, uuid.New())

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}
