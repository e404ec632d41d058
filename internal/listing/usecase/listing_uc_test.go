package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/urbanestate/listing-service/internal/adapter/repository/memory"
	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/listing/query"
	"github.com/urbanestate/listing-service/internal/platform/logger"
	"github.com/urbanestate/listing-service/internal/platform/metrics"
)

type MockAuthenticator struct{ mock.Mock }

func (m *MockAuthenticator) Verify(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type MockMediaStore struct{ mock.Mock }

func (m *MockMediaStore) Store(ctx context.Context, data []byte, originalName string) (string, error) {
	args := m.Called(ctx, data, originalName)
	return args.String(0), args.Error(1)
}

func (m *MockMediaStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockListingRepository struct{ mock.Mock }

func (m *MockListingRepository) Find(ctx context.Context, p domain.Predicate) ([]*domain.Listing, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Listing), args.Error(1)
}

func (m *MockListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *MockListingRepository) FindByOwnerAndID(ctx context.Context, ownerID, id string) (*domain.Listing, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *MockListingRepository) Insert(ctx context.Context, l *domain.Listing) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockListingRepository) ReplaceFields(ctx context.Context, id string, u domain.ListingUpdate) error {
	return m.Called(ctx, id, u).Error(0)
}

func (m *MockListingRepository) BulkSetStatus(ctx context.Context, p domain.Predicate, s domain.ListingStatus) (int64, error) {
	args := m.Called(ctx, p, s)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockListingRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	return m.Called(ctx, subject, data).Error(0)
}

const (
	ownerToken    = "owner-token"
	intruderToken = "intruder-token"
	ownerID       = "owner-1"
	intruderID    = "intruder-2"
)

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func validForm() domain.ListingForm {
	return domain.ListingForm{
		Price:           "1500",
		TransactionKind: "rent",
		Furnished:       "semi",
		Facilities:      []string{"pool,gym"},
		City:            "Riyadh",
		Bedrooms:        "2",
		Bathrooms:       "1",
		Size:            "90",
		Age:             "3",
		Keywords:        "downtown",
		Description:     "Close to the metro",
		PropertyType:    "apartment",
		Title:           "Downtown flat",
		Neighborhood:    "Al Malaz",
	}
}

func newAuth() *MockAuthenticator {
	a := &MockAuthenticator{}
	a.On("Verify", mock.Anything, ownerToken).Return(ownerID, nil).Maybe()
	a.On("Verify", mock.Anything, intruderToken).Return(intruderID, nil).Maybe()
	a.On("Verify", mock.Anything, mock.Anything).Return("", domain.ErrUnauthenticated).Maybe()
	return a
}

type fixture struct {
	uc      *ListingUsecase
	repo    *memory.ListingRepository
	media   *MockMediaStore
	pub     *MockPublisher
	metrics *metrics.MetricsManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    memory.NewListingRepository(),
		media:   &MockMediaStore{},
		pub:     &MockPublisher{},
		metrics: metrics.NewMetricsManager("listing-service"),
	}
	f.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.uc = NewListingUsecase(f.repo, newAuth(), f.media, logger.NewNop(),
		WithPublisher(f.pub),
		WithMetrics(f.metrics),
		WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

func (f *fixture) seed(t *testing.T, owner string, files ...string) *domain.Listing {
	t.Helper()
	fields, err := domain.ParseListingForm(validForm())
	require.NoError(t, err)
	l := domain.NewListing(owner, fields, files, fixedNow.Add(-time.Hour))
	require.NoError(t, f.repo.Insert(context.Background(), l))
	return l
}

func TestCreate_Success(t *testing.T) {
	f := newFixture(t)
	f.media.On("Store", mock.Anything, []byte("a"), "a.jpg").Return("m-a", nil).Once()
	f.media.On("Store", mock.Anything, []byte("b"), "b.jpg").Return("m-b", nil).Once()

	l, err := f.uc.Create(context.Background(), ownerToken, validForm(), []Upload{
		{Name: "a.jpg", Data: []byte("a")},
		{Name: "b.jpg", Data: []byte("b")},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, l.ID)
	assert.Equal(t, ownerID, l.OwnerID)
	assert.Equal(t, domain.StatusLive, l.Status)
	assert.Equal(t, []string{"m-a", "m-b"}, l.Files)
	assert.Equal(t, fixedNow, l.CreatedAt)
	assert.Equal(t, fixedNow, l.UpdatedAt)
	assert.True(t, l.Furnished.Equal(domain.FurnishedText("semi")))

	stored, err := f.repo.FindByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-a", "m-b"}, stored.Files)

	f.media.AssertExpectations(t)
	f.pub.AssertCalled(t, "Publish", mock.Anything, domain.SubjectListingCreated, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ListingsCreatedTotal))
}

func TestCreate_MissingPriceStoresNothing(t *testing.T) {
	f := newFixture(t)
	form := validForm()
	form.Price = ""

	_, err := f.uc.Create(context.Background(), ownerToken, form, []Upload{{Name: "a.jpg", Data: []byte("a")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	var verrs domain.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "Price", verrs[0].Field)

	assert.Zero(t, f.repo.Len())
	f.media.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	for _, token := range []string{"", "forged"} {
		_, err := f.uc.Create(context.Background(), token, validForm(), nil)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	}
	assert.Zero(t, f.repo.Len())
}

func TestCreate_StoreFailureReleasesEarlierUploads(t *testing.T) {
	f := newFixture(t)
	f.media.On("Store", mock.Anything, mock.Anything, "a.jpg").Return("m-a", nil).Once()
	f.media.On("Store", mock.Anything, mock.Anything, "b.jpg").Return("", errors.New("disk full")).Once()
	f.media.On("Delete", mock.Anything, "m-a").Return(nil).Once()

	_, err := f.uc.Create(context.Background(), ownerToken, validForm(), []Upload{
		{Name: "a.jpg", Data: []byte("a")},
		{Name: "b.jpg", Data: []byte("b")},
	})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Zero(t, f.repo.Len())
	f.media.AssertExpectations(t)
}

func TestCreate_InsertFailureReleasesUploads(t *testing.T) {
	repo := &MockListingRepository{}
	repo.On("Insert", mock.Anything, mock.Anything).Return(fmt.Errorf("%w: timeout", domain.ErrStorageUnavailable))
	media := &MockMediaStore{}
	media.On("Store", mock.Anything, mock.Anything, "a.jpg").Return("m-a", nil)
	media.On("Delete", mock.Anything, "m-a").Return(nil).Once()

	uc := NewListingUsecase(repo, newAuth(), media, logger.NewNop())
	_, err := uc.Create(context.Background(), ownerToken, validForm(), []Upload{{Name: "a.jpg", Data: []byte("a")}})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	media.AssertExpectations(t)
}

func TestUpdate_MergesFiles(t *testing.T) {
	f := newFixture(t)
	l := f.seed(t, ownerID, "keep", "drop", "also-keep")
	other := f.seed(t, "someone-else", "foreign")

	f.media.On("Store", mock.Anything, []byte("n"), "new.jpg").Return("new", nil).Once()
	f.media.On("Delete", mock.Anything, "drop").Return(errors.New("already gone")).Once()

	form := validForm()
	form.Title = "Renovated flat"
	form.Furnished = "true"
	updated, err := f.uc.Update(context.Background(), ownerToken, l.ID, form,
		[]Upload{{Name: "new.jpg", Data: []byte("n")}},
		[]string{"drop", "foreign", "drop"},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"keep", "also-keep", "new"}, updated.Files)
	assert.Equal(t, "Renovated flat", updated.Title)

	stored, err := f.repo.FindByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep", "also-keep", "new"}, stored.Files)
	assert.True(t, stored.Furnished.Equal(domain.FurnishedFlag(true)))
	assert.Equal(t, fixedNow, stored.UpdatedAt)
	assert.Equal(t, l.CreatedAt, stored.CreatedAt)
	assert.Equal(t, ownerID, stored.OwnerID)

	// A marker naming another listing's file is ignored.
	f.media.AssertNotCalled(t, "Delete", mock.Anything, "foreign")
	f.media.AssertExpectations(t)
	foreign, err := f.repo.FindByID(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"foreign"}, foreign.Files)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MediaDeleteFailuresTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ListingsUpdatedTotal))
}

func TestUpdate_NonOwnerIsForbiddenAndNothingChanges(t *testing.T) {
	f := newFixture(t)
	l := f.seed(t, ownerID, "keep")
	before, err := f.repo.FindByID(context.Background(), l.ID)
	require.NoError(t, err)

	form := validForm()
	form.Title = "Hijacked"
	_, err = f.uc.Update(context.Background(), intruderToken, l.ID, form,
		[]Upload{{Name: "x.jpg", Data: []byte("x")}}, []string{"keep"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	after, err := f.repo.FindByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	f.media.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	f.media.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUpdate_Errors(t *testing.T) {
	f := newFixture(t)
	l := f.seed(t, ownerID)

	_, err := f.uc.Update(context.Background(), "bad", l.ID, validForm(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = f.uc.Update(context.Background(), ownerToken, "missing", validForm(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)

	form := validForm()
	form.Bedrooms = "many"
	_, err = f.uc.Update(context.Background(), ownerToken, l.ID, form, nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdate_RecordFailureKeepsRemovedMedia(t *testing.T) {
	fields, err := domain.ParseListingForm(validForm())
	require.NoError(t, err)
	existing := domain.NewListing(ownerID, fields, []string{"old"}, fixedNow)
	existing.ID = "l1"

	repo := &MockListingRepository{}
	repo.On("FindByID", mock.Anything, "l1").Return(existing, nil)
	repo.On("ReplaceFields", mock.Anything, "l1", mock.Anything).Return(domain.ErrStorageUnavailable)
	media := &MockMediaStore{}
	media.On("Store", mock.Anything, mock.Anything, "new.jpg").Return("new", nil)
	media.On("Delete", mock.Anything, "new").Return(nil).Once()

	uc := NewListingUsecase(repo, newAuth(), media, logger.NewNop())
	_, err = uc.Update(context.Background(), ownerToken, "l1", validForm(),
		[]Upload{{Name: "new.jpg", Data: []byte("n")}}, []string{"old"})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	media.AssertExpectations(t)
	media.AssertNotCalled(t, "Delete", mock.Anything, "old")
}

func TestDelete_AttemptsEveryFileBeforeRemovingRecord(t *testing.T) {
	fields, err := domain.ParseListingForm(validForm())
	require.NoError(t, err)
	existing := domain.NewListing(ownerID, fields, []string{"f1", "f2", "f3"}, fixedNow)
	existing.ID = "l1"

	var order []string
	repo := &MockListingRepository{}
	repo.On("FindByID", mock.Anything, "l1").Return(existing, nil)
	repo.On("Delete", mock.Anything, "l1").Run(func(mock.Arguments) { order = append(order, "record") }).Return(nil)

	media := &MockMediaStore{}
	for _, id := range []string{"f1", "f2", "f3"} {
		id := id
		var result error
		if id == "f2" {
			result = errors.New("permission denied")
		}
		media.On("Delete", mock.Anything, id).Run(func(mock.Arguments) { order = append(order, id) }).Return(result).Once()
	}

	uc := NewListingUsecase(repo, newAuth(), media, logger.NewNop())
	require.NoError(t, uc.Delete(context.Background(), ownerToken, "l1"))

	assert.Equal(t, []string{"f1", "f2", "f3", "record"}, order)
	media.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestDelete_Checks(t *testing.T) {
	f := newFixture(t)
	l := f.seed(t, ownerID, "f1")

	assert.ErrorIs(t, f.uc.Delete(context.Background(), "", l.ID), domain.ErrUnauthenticated)
	assert.ErrorIs(t, f.uc.Delete(context.Background(), ownerToken, "missing"), domain.ErrListingNotFound)
	assert.ErrorIs(t, f.uc.Delete(context.Background(), intruderToken, l.ID), domain.ErrForbidden)
	assert.Equal(t, 1, f.repo.Len())
	f.media.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)

	f.media.On("Delete", mock.Anything, "f1").Return(nil).Once()
	require.NoError(t, f.uc.Delete(context.Background(), ownerToken, l.ID))
	assert.Zero(t, f.repo.Len())
	f.pub.AssertCalled(t, "Publish", mock.Anything, domain.SubjectListingDeleted, mock.Anything)
}

func TestReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mine := f.seed(t, ownerID, "img-1")
	theirs := f.seed(t, intruderID)

	all, err := f.uc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := f.uc.Get(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, intruderID, got.OwnerID)

	images, err := f.uc.Images(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"img-1"}, images)

	owned, err := f.uc.MyListings(ctx, ownerToken)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, mine.ID, owned[0].ID)

	_, err = f.uc.MyListing(ctx, ownerToken, theirs.ID)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
	_, err = f.uc.MyListings(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, ownerID)

	found, err := f.uc.Search(ctx, query.Params{City: "Riyadh", Amenities: "pool, gym ,", Furnished: "semi"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = f.uc.Search(ctx, query.Params{Furnished: "true"})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = f.uc.Search(ctx, query.Params{MinPrice: "100000", MaxPrice: "50000"})
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

// cachedRepo serves FindByID from a snapshot taken earlier, like a read cache
// that missed an invalidation, and FindByIDFresh from the backing store.
type cachedRepo struct {
	*memory.ListingRepository
	snapshot *domain.Listing
}

func (r *cachedRepo) FindByID(context.Context, string) (*domain.Listing, error) {
	return r.snapshot, nil
}

func (r *cachedRepo) FindByIDFresh(ctx context.Context, id string) (*domain.Listing, error) {
	return r.ListingRepository.FindByID(ctx, id)
}

func TestMutationsIgnoreCachedCopy(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewListingRepository()
	fields, err := domain.ParseListingForm(validForm())
	require.NoError(t, err)
	current := domain.NewListing(ownerID, fields, []string{"b.jpg"}, fixedNow)
	require.NoError(t, backing.Insert(ctx, current))

	stale := *current
	stale.Files = []string{"a.jpg", "b.jpg"}
	repo := &cachedRepo{ListingRepository: backing, snapshot: &stale}

	media := &MockMediaStore{}
	uc := NewListingUsecase(repo, newAuth(), media, logger.NewNop(), WithClock(func() time.Time { return fixedNow }))

	updated, err := uc.Update(ctx, ownerToken, current.ID, validForm(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.jpg"}, updated.Files)
	stored, err := backing.FindByID(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.jpg"}, stored.Files, "a.jpg was already released and must not come back")

	media.On("Delete", mock.Anything, "b.jpg").Return(nil).Once()
	require.NoError(t, uc.Delete(ctx, ownerToken, current.ID))
	media.AssertExpectations(t)
	media.AssertNotCalled(t, "Delete", mock.Anything, "a.jpg")
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	userID, err := f.uc.Authenticate(context.Background(), ownerToken)
	require.NoError(t, err)
	assert.Equal(t, ownerID, userID)

	_, err = f.uc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
