package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/listing/query"
	"github.com/urbanestate/listing-service/internal/platform/logger"
	"github.com/urbanestate/listing-service/internal/platform/metrics"
)

var tracer = otel.Tracer("listing-service/usecase")

// Upload is one file received with a create or update request.
type Upload struct {
	Name string
	Data []byte
}

// ListingEvent is the payload of listing.created, listing.updated and
// listing.deleted.
type ListingEvent struct {
	ListingID string    `json:"listing_id"`
	OwnerID   string    `json:"owner_id"`
	Files     []string  `json:"files,omitempty"`
	At        time.Time `json:"at"`
}

// ListingUsecase orchestrates listing reads and mutations. It checks identity
// and ownership and keeps the stored file list in step with the media store.
//
// Mutations that touch media follow a two-step protocol without a transaction:
// media that stops being referenced is released only after the record no longer
// references it (update) or right before the record is removed (delete). A
// failure between the steps can leave an orphaned file, never a live record
// pointing at a deleted file.
type ListingUsecase struct {
	repo      domain.ListingRepository
	auth      domain.Authenticator
	media     domain.MediaStore
	publisher domain.EventPublisher
	metrics   *metrics.MetricsManager
	now       func() time.Time
	logger    *logger.Logger
}

type Option func(*ListingUsecase)

func WithPublisher(p domain.EventPublisher) Option {
	return func(uc *ListingUsecase) { uc.publisher = p }
}

func WithMetrics(m *metrics.MetricsManager) Option {
	return func(uc *ListingUsecase) { uc.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(uc *ListingUsecase) { uc.now = now }
}

func NewListingUsecase(repo domain.ListingRepository, auth domain.Authenticator, media domain.MediaStore, log *logger.Logger, opts ...Option) *ListingUsecase {
	uc := &ListingUsecase{
		repo:   repo,
		auth:   auth,
		media:  media,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.Named("ListingUsecase"),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *ListingUsecase) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ListingUsecase."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Authenticate returns the user id carried by token. Transports call it to
// reject anonymous submissions before reading their bodies.
func (uc *ListingUsecase) Authenticate(ctx context.Context, token string) (string, error) {
	return uc.authenticate(ctx, token)
}

func (uc *ListingUsecase) authenticate(ctx context.Context, token string) (string, error) {
	userID, err := uc.auth.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", domain.ErrUnauthenticated)
	}
	return userID, nil
}

// Create validates the form, stores every upload and inserts a live listing
// owned by the caller. Nothing is stored when validation fails.
func (uc *ListingUsecase) Create(ctx context.Context, token string, form domain.ListingForm, uploads []Upload) (_ *domain.Listing, err error) {
	ctx, span := uc.startSpan(ctx, "Create", attribute.Int("uploads", len(uploads)))
	defer func() { endSpan(span, err) }()

	userID, err := uc.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	fields, err := domain.ParseListingForm(form)
	if err != nil {
		uc.logger.Debug("rejected listing submission", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	files, err := uc.storeUploads(ctx, uploads)
	if err != nil {
		return nil, err
	}

	listing := domain.NewListing(userID, fields, files, uc.now())
	if err := uc.repo.Insert(ctx, listing); err != nil {
		uc.logger.Error("failed to insert listing", zap.String("user_id", userID), zap.Error(err))
		uc.releaseMedia(ctx, files)
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.ListingsCreatedTotal.Inc()
	}
	uc.publish(ctx, domain.SubjectListingCreated, ListingEvent{
		ListingID: listing.ID, OwnerID: userID, Files: listing.Files, At: listing.CreatedAt,
	})
	uc.logger.Info("listing created", zap.String("listing_id", listing.ID), zap.String("user_id", userID), zap.Int("files", len(files)))
	return listing, nil
}

// Update replaces every mutable field of the caller's listing and merges its
// file list: identifiers in deletedFiles that belong to the listing are dropped
// and their media released best-effort; new uploads are appended.
func (uc *ListingUsecase) Update(ctx context.Context, token, id string, form domain.ListingForm, uploads []Upload, deletedFiles []string) (_ *domain.Listing, err error) {
	ctx, span := uc.startSpan(ctx, "Update", attribute.String("listing.id", id))
	defer func() { endSpan(span, err) }()

	userID, err := uc.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	listing, err := uc.findForWrite(ctx, id)
	if err != nil {
		return nil, err
	}
	if !listing.IsOwnedBy(userID) {
		uc.logger.Warn("user forbidden to update listing", zap.String("listing_id", id), zap.String("user_id", userID))
		return nil, fmt.Errorf("%w: listing %s", domain.ErrForbidden, id)
	}
	fields, err := domain.ParseListingForm(form)
	if err != nil {
		return nil, err
	}

	added, err := uc.storeUploads(ctx, uploads)
	if err != nil {
		return nil, err
	}

	removed := make(map[string]struct{}, len(deletedFiles))
	for _, f := range deletedFiles {
		if listing.HasFile(f) {
			removed[f] = struct{}{}
		}
	}
	kept := make([]string, 0, len(listing.Files)+len(added))
	var released []string
	for _, f := range listing.Files {
		if _, drop := removed[f]; drop {
			released = append(released, f)
			continue
		}
		kept = append(kept, f)
	}
	files := append(kept, added...)

	update := domain.ListingUpdate{Fields: fields, Files: files, UpdatedAt: uc.now()}
	if err := uc.repo.ReplaceFields(ctx, id, update); err != nil {
		uc.logger.Error("failed to update listing", zap.String("listing_id", id), zap.Error(err))
		uc.releaseMedia(ctx, added)
		return nil, err
	}
	uc.releaseMedia(ctx, released)

	listing.ListingFields = fields
	listing.Files = files
	listing.UpdatedAt = update.UpdatedAt

	if uc.metrics != nil {
		uc.metrics.ListingsUpdatedTotal.Inc()
	}
	uc.publish(ctx, domain.SubjectListingUpdated, ListingEvent{
		ListingID: id, OwnerID: userID, Files: files, At: update.UpdatedAt,
	})
	uc.logger.Info("listing updated",
		zap.String("listing_id", id),
		zap.Int("files_added", len(added)),
		zap.Int("files_removed", len(released)),
	)
	return listing, nil
}

// Delete releases every file of the caller's listing, best-effort, and then
// removes the record.
func (uc *ListingUsecase) Delete(ctx context.Context, token, id string) (err error) {
	ctx, span := uc.startSpan(ctx, "Delete", attribute.String("listing.id", id))
	defer func() { endSpan(span, err) }()

	userID, err := uc.authenticate(ctx, token)
	if err != nil {
		return err
	}
	listing, err := uc.findForWrite(ctx, id)
	if err != nil {
		return err
	}
	if !listing.IsOwnedBy(userID) {
		uc.logger.Warn("user forbidden to delete listing", zap.String("listing_id", id), zap.String("user_id", userID))
		return fmt.Errorf("%w: listing %s", domain.ErrForbidden, id)
	}

	uc.releaseMedia(ctx, listing.Files)

	if err := uc.repo.Delete(ctx, id); err != nil {
		uc.logger.Error("failed to delete listing", zap.String("listing_id", id), zap.Error(err))
		return err
	}

	if uc.metrics != nil {
		uc.metrics.ListingsDeletedTotal.Inc()
	}
	uc.publish(ctx, domain.SubjectListingDeleted, ListingEvent{
		ListingID: id, OwnerID: userID, Files: listing.Files, At: uc.now(),
	})
	uc.logger.Info("listing deleted", zap.String("listing_id", id), zap.Int("files", len(listing.Files)))
	return nil
}

// Get returns one listing. No identity is required.
func (uc *ListingUsecase) Get(ctx context.Context, id string) (*domain.Listing, error) {
	return uc.repo.FindByID(ctx, id)
}

// Images returns the media identifiers of one listing.
func (uc *ListingUsecase) Images(ctx context.Context, id string) ([]string, error) {
	l, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.Files, nil
}

// List returns every listing, newest first.
func (uc *ListingUsecase) List(ctx context.Context) ([]*domain.Listing, error) {
	return uc.repo.Find(ctx, domain.Predicate{})
}

// Search compiles params and returns the matching listings. Unparsable
// parameters are ignored rather than reported.
func (uc *ListingUsecase) Search(ctx context.Context, params query.Params) (_ []*domain.Listing, err error) {
	ctx, span := uc.startSpan(ctx, "Search")
	defer func() { endSpan(span, err) }()

	p := query.Compile(params)
	if p.Unsatisfiable() {
		span.SetAttributes(attribute.Bool("query.unsatisfiable", true))
		return []*domain.Listing{}, nil
	}
	return uc.repo.Find(ctx, p)
}

// MyListings returns the caller's listings.
func (uc *ListingUsecase) MyListings(ctx context.Context, token string) ([]*domain.Listing, error) {
	userID, err := uc.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return uc.repo.Find(ctx, domain.Predicate{OwnerID: userID})
}

// MyListing returns one of the caller's listings. A listing owned by someone
// else is reported as not found.
func (uc *ListingUsecase) MyListing(ctx context.Context, token, id string) (*domain.Listing, error) {
	userID, err := uc.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return uc.repo.FindByOwnerAndID(ctx, userID, id)
}

// findForWrite reads the listing a mutation is derived from, bypassing any
// read cache in front of the repository.
func (uc *ListingUsecase) findForWrite(ctx context.Context, id string) (*domain.Listing, error) {
	if fr, ok := uc.repo.(domain.FreshReader); ok {
		return fr.FindByIDFresh(ctx, id)
	}
	return uc.repo.FindByID(ctx, id)
}

// storeUploads stores every upload in order. If one fails, the ones already
// stored are released and the error is returned.
func (uc *ListingUsecase) storeUploads(ctx context.Context, uploads []Upload) ([]string, error) {
	ids := make([]string, 0, len(uploads))
	for _, u := range uploads {
		id, err := uc.media.Store(ctx, u.Data, u.Name)
		if err != nil {
			uc.logger.Error("failed to store upload", zap.String("name", u.Name), zap.Error(err))
			uc.releaseMedia(ctx, ids)
			if errors.Is(err, domain.ErrStorageUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: store %s: %w", domain.ErrStorageUnavailable, u.Name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// releaseMedia attempts to delete every id. Failures are logged and counted,
// never returned.
func (uc *ListingUsecase) releaseMedia(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := uc.media.Delete(ctx, id); err != nil {
			uc.logger.Warn("failed to delete media file", zap.String("file", id), zap.Error(err))
			if uc.metrics != nil {
				uc.metrics.MediaDeleteFailuresTotal.Inc()
			}
		}
	}
}

func (uc *ListingUsecase) publish(ctx context.Context, subject string, event ListingEvent) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.Publish(ctx, subject, event); err != nil {
		uc.logger.Warn("failed to publish event", zap.String("subject", subject), zap.String("listing_id", event.ListingID), zap.Error(err))
	}
}
