package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"
	"reelhub/pkg/tracing"
	"reelhub/pkg/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxReasonLength = 1000

// ProfileService implements the role profile operations on top of a
// DocumentStore. Every mutation is one atomic read-modify-write of the
// owner's variant document.
type ProfileService struct {
	store   ports.DocumentStore
	codec   ports.Codec
	gate    ports.AuthorizationGate
	metrics ports.ProfileMetrics
	logger  *zap.SugaredLogger
	now     func() time.Time
	newID   func() string
}

type ProfileServiceOption func(*ProfileService)

func WithClock(now func() time.Time) ProfileServiceOption {
	return func(s *ProfileService) { s.now = now }
}

func WithIDGenerator(newID func() string) ProfileServiceOption {
	return func(s *ProfileService) { s.newID = newID }
}

func WithProfileMetrics(m ports.ProfileMetrics) ProfileServiceOption {
	return func(s *ProfileService) { s.metrics = m }
}

func NewProfileService(
	store ports.DocumentStore,
	codec ports.Codec,
	gate ports.AuthorizationGate,
	logger *zap.SugaredLogger,
	opts ...ProfileServiceOption,
) *ProfileService {
	s := &ProfileService{
		store:   store,
		codec:   codec,
		gate:    gate,
		metrics: noopProfileMetrics{},
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.ProfileService = (*ProfileService)(nil)

func (s *ProfileService) CreateProfile(ctx context.Context, id domain.Identity, owner domain.UserID, variant domain.Variant, fields domain.ProfileFields) (domain.Profile, error) {
	var profile domain.Profile
	err := s.run(ctx, "create_profile", owner, func(ctx context.Context) error {
		class := domain.OpSelfWrite
		if variant == domain.VariantAdmin {
			class = domain.OpAdminOnly
		}

		checks := []error{checkVariant(variant), validation.ValidateTags(fields.Expertise)}
		for _, movieID := range fields.Watchlist {
			checks = append(checks, validation.ValidateMovieID(movieID))
		}
		storeCtx, err := s.admit(ctx, id, owner, class, checks...)
		if err != nil {
			return err
		}

		profile, err = domain.NewProfile(owner, variant, fields, s.now())
		if err != nil {
			return err
		}
		data, err := s.codec.Marshal(profile.Document())
		if err != nil {
			return fmt.Errorf("encode %s profile: %w", variant, err)
		}
		return s.store.Create(storeCtx, domain.ProfileKey(owner, variant), data)
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, id domain.Identity, owner domain.UserID, variant domain.Variant) (domain.Profile, error) {
	var profile domain.Profile
	err := s.run(ctx, "get_profile", owner, func(ctx context.Context) error {
		storeCtx, err := s.admit(ctx, id, owner, domain.OpSelfRead, checkVariant(variant))
		if err != nil {
			return err
		}

		key := domain.ProfileKey(owner, variant)
		profile.Variant = variant
		switch variant {
		case domain.VariantViewer:
			profile.Viewer, err = load[domain.ViewerProfile](storeCtx, s, key)
		case domain.VariantCurator:
			profile.Curator, err = load[domain.CuratorProfile](storeCtx, s, key)
		case domain.VariantAdmin:
			profile.Admin, err = load[domain.AdminProfile](storeCtx, s, key)
		}
		return err
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

func (s *ProfileService) AddWatchlistItem(ctx context.Context, id domain.Identity, viewer domain.UserID, movieID string) (*domain.ViewerProfile, error) {
	var doc *domain.ViewerProfile
	err := s.run(ctx, "add_watchlist_item", viewer, func(ctx context.Context) error {
		storeCtx, err := s.admit(ctx, id, viewer, domain.OpSelfWrite, validation.ValidateMovieID(movieID))
		if err != nil {
			return err
		}
		doc, err = mutate[domain.ViewerProfile](storeCtx, s, domain.ProfileKey(viewer, domain.VariantViewer),
			func(p *domain.ViewerProfile, now time.Time) (bool, error) {
				return p.AddToWatchlist(movieID, now), nil
			})
		return err
	})
	return doc, err
}

func (s *ProfileService) RemoveWatchlistItem(ctx context.Context, id domain.Identity, viewer domain.UserID, movieID string) (*domain.ViewerProfile, error) {
	var doc *domain.ViewerProfile
	err := s.run(ctx, "remove_watchlist_item", viewer, func(ctx context.Context) error {
		storeCtx, err := s.admit(ctx, id, viewer, domain.OpSelfWrite, validation.ValidateMovieID(movieID))
		if err != nil {
			return err
		}
		doc, err = mutate[domain.ViewerProfile](storeCtx, s, domain.ProfileKey(viewer, domain.VariantViewer),
			func(p *domain.ViewerProfile, _ time.Time) (bool, error) {
				return p.RemoveFromWatchlist(movieID), nil
			})
		return err
	})
	return doc, err
}

func (s *ProfileService) UpdateExpertise(ctx context.Context, id domain.Identity, curator domain.UserID, tags []string) (*domain.CuratorProfile, error) {
	var doc *domain.CuratorProfile
	err := s.run(ctx, "update_expertise", curator, func(ctx context.Context) error {
		storeCtx, err := s.admit(ctx, id, curator, domain.OpSelfWrite, validation.ValidateTags(tags))
		if err != nil {
			return err
		}
		doc, err = mutate[domain.CuratorProfile](storeCtx, s, curatorKey(curator),
			func(p *domain.CuratorProfile, _ time.Time) (bool, error) {
				return p.SetExpertise(tags), nil
			})
		return err
	})
	return doc, err
}

func (s *ProfileService) AddRecommendation(ctx context.Context, id domain.Identity, curator domain.UserID, movieID, reason string) (*domain.CuratorProfile, error) {
	var doc *domain.CuratorProfile
	err := s.run(ctx, "add_recommendation", curator, func(ctx context.Context) error {
		storeCtx, err := s.admit(ctx, id, curator, domain.OpSelfWrite,
			validation.ValidateMovieID(movieID),
			validation.ValidateStringLength(reason, 0, maxReasonLength, "reason"),
		)
		if err != nil {
			return err
		}
		doc, err = mutate[domain.CuratorProfile](storeCtx, s, curatorKey(curator),
			func(p *domain.CuratorProfile, now time.Time) (bool, error) {
				p.AddRecommendation(domain.Recommendation{MovieID: movieID, Reason: reason, CreatedAt: now})
				return true, nil
			})
		return err
	})
	return doc, err
}

func (s *ProfileService) ListCuratedLists(ctx context.Context, id domain.Identity, curator domain.UserID) ([]domain.CuratedList, error) {
	var lists []domain.CuratedList
	err := s.run(ctx, "list_curated_lists", curator, func(ctx context.Context) error {
		storeCtx, err := s.admit(ctx, id, curator, domain.OpSelfRead)
		if err != nil {
			return err
		}
		doc, err := load[domain.CuratorProfile](storeCtx, s, curatorKey(curator))
		if err != nil {
			return err
		}
		lists = doc.CuratedLists
		if lists == nil {
			lists = []domain.CuratedList{}
		}
		return nil
	})
	return lists, err
}

func (s *ProfileService) CreateCuratedList(ctx context.Context, id domain.Identity, curator domain.UserID, name, description string) (domain.CuratedList, *domain.CuratorProfile, error) {
	var (
		list domain.CuratedList
		doc  *domain.CuratorProfile
	)
	err := s.run(ctx, "create_curated_list", curator, func(ctx context.Context) error {
		storeCtx, err := s.admit(ctx, id, curator, domain.OpSelfWrite,
			validation.ValidateListName(name),
			validation.ValidateDescription(description),
		)
		if err != nil {
			return err
		}

		// The id is fixed before the mutation so a retried attempt reuses it.
		listID := s.newID()
		tracing.AddSpanAttributes(ctx, tracing.ListIDKey.String(listID))
		doc, err = mutate[domain.CuratorProfile](storeCtx, s, curatorKey(curator),
			func(p *domain.CuratorProfile, now time.Time) (bool, error) {
				list = domain.CuratedList{
					ListID:      listID,
					ListName:    name,
					Description: description,
					CreatedAt:   now,
					Movies:      []domain.ListMovie{},
				}
				return true, p.AddList(list)
			})
		return err
	})
	if err != nil {
		return domain.CuratedList{}, nil, err
	}
	return list, doc, nil
}

func (s *ProfileService) UpdateCuratedList(ctx context.Context, id domain.Identity, curator domain.UserID, listID string, patch domain.ListPatch) (domain.CuratedList, error) {
	var list domain.CuratedList
	err := s.run(ctx, "update_curated_list", curator, func(ctx context.Context) error {
		checks := []error{validation.ValidateNonEmptyString(listID, "list id")}
		if patch.IsEmpty() {
			checks = append(checks, errors.New("list update must set listName or description"))
		}
		if patch.Name != nil {
			checks = append(checks, validation.ValidateListName(*patch.Name))
		}
		if patch.Description != nil {
			checks = append(checks, validation.ValidateDescription(*patch.Description))
		}
		storeCtx, err := s.admit(ctx, id, curator, domain.OpSelfWrite, checks...)
		if err != nil {
			return err
		}

		tracing.AddSpanAttributes(ctx, tracing.ListIDKey.String(listID))
		_, err = mutate[domain.CuratorProfile](storeCtx, s, curatorKey(curator),
			func(p *domain.CuratorProfile, _ time.Time) (bool, error) {
				updated, changed, err := p.UpdateList(listID, patch)
				list = updated
				return changed, err
			})
		return err
	})
	if err != nil {
		return domain.CuratedList{}, err
	}
	return list, nil
}

func (s *ProfileService) DeleteCuratedList(ctx context.Context, id domain.Identity, curator domain.UserID, listID string) (*domain.CuratorProfile, error) {
	var doc *domain.CuratorProfile
	err := s.run(ctx, "delete_curated_list", curator, func(ctx context.Context) error {
		storeCtx, err := s.admit(ctx, id, curator, domain.OpSelfWrite, validation.ValidateNonEmptyString(listID, "list id"))
		if err != nil {
			return err
		}

		tracing.AddSpanAttributes(ctx, tracing.ListIDKey.String(listID))
		doc, err = mutate[domain.CuratorProfile](storeCtx, s, curatorKey(curator),
			func(p *domain.CuratorProfile, _ time.Time) (bool, error) {
				return true, p.DeleteList(listID)
			})
		return err
	})
	return doc, err
}

func (s *ProfileService) AddMovieToList(ctx context.Context, id domain.Identity, curator domain.UserID, listID string, movie domain.ListMovie) (domain.CuratedList, error) {
	var list domain.CuratedList
	err := s.run(ctx, "add_movie_to_list", curator, func(ctx context.Context) error {
		storeCtx, err := s.admit(ctx, id, curator, domain.OpSelfWrite,
			validation.ValidateNonEmptyString(listID, "list id"),
			validation.ValidateMovieID(movie.MovieID),
			validation.ValidateStringLength(movie.MovieTitle, 0, validation.MaxListNameLength*2, "movie title"),
			validation.ValidatePosterURL(movie.MoviePoster),
		)
		if err != nil {
			return err
		}

		tracing.AddSpanAttributes(ctx, tracing.ListIDKey.String(listID))
		_, err = mutate[domain.CuratorProfile](storeCtx, s, curatorKey(curator),
			func(p *domain.CuratorProfile, now time.Time) (bool, error) {
				entry := movie
				entry.AddedAt = now
				updated, changed, err := p.AddMovie(listID, entry)
				list = updated
				return changed, err
			})
		return err
	})
	if err != nil {
		return domain.CuratedList{}, err
	}
	return list, nil
}

func (s *ProfileService) RemoveMovieFromList(ctx context.Context, id domain.Identity, curator domain.UserID, listID, movieID string) (domain.CuratedList, error) {
	var list domain.CuratedList
	err := s.run(ctx, "remove_movie_from_list", curator, func(ctx context.Context) error {
		storeCtx, err := s.admit(ctx, id, curator, domain.OpSelfWrite,
			validation.ValidateNonEmptyString(listID, "list id"),
			validation.ValidateMovieID(movieID),
		)
		if err != nil {
			return err
		}

		tracing.AddSpanAttributes(ctx, tracing.ListIDKey.String(listID))
		_, err = mutate[domain.CuratorProfile](storeCtx, s, curatorKey(curator),
			func(p *domain.CuratorProfile, _ time.Time) (bool, error) {
				updated, changed, err := p.RemoveMovie(listID, movieID)
				list = updated
				return changed, err
			})
		return err
	})
	if err != nil {
		return domain.CuratedList{}, err
	}
	return list, nil
}

func (s *ProfileService) AppendActivityLog(ctx context.Context, id domain.Identity, admin domain.UserID, entry domain.ActivityEntry) (*domain.AdminProfile, error) {
	var doc *domain.AdminProfile
	err := s.run(ctx, "append_activity_log", admin, func(ctx context.Context) error {
		storeCtx, err := s.admit(ctx, id, admin, domain.OpAdminOnly, validation.ValidateActivity(entry.Action, entry.Details))
		if err != nil {
			return err
		}
		doc, err = mutate[domain.AdminProfile](storeCtx, s, domain.ProfileKey(admin, domain.VariantAdmin),
			func(p *domain.AdminProfile, now time.Time) (bool, error) {
				e := entry
				if e.Timestamp.IsZero() {
					e.Timestamp = now
				}
				p.AppendActivity(e)
				return true, nil
			})
		return err
	})
	return doc, err
}

// admit authorizes the call, then reports the first failed input check, then
// the caller's cancellation. The returned context carries the caller's values
// but not its cancellation: once admitted, a store write runs to completion.
func (s *ProfileService) admit(ctx context.Context, id domain.Identity, owner domain.UserID, class domain.OperationClass, checks ...error) (context.Context, error) {
	if err := s.gate.Authorize(id, owner, class); err != nil {
		return nil, err
	}

	if err := validation.ValidateUserID(string(owner)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	for _, err := range checks {
		if err == nil {
			continue
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return context.WithoutCancel(ctx), nil
}

func (s *ProfileService) run(ctx context.Context, operation string, owner domain.UserID, fn func(ctx context.Context) error) error {
	ctx, span := tracing.TraceProfileOperation(ctx, operation, string(owner))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	result := resultOf(err)
	s.metrics.RecordProfileOperation(operation, result, time.Since(start))

	if err != nil {
		tracing.RecordError(ctx, err)
		if result == "error" || result == "unavailable" {
			s.logger.Errorw("Profile operation failed",
				"operation", operation,
				"owner_id", owner,
				"error", err,
			)
		} else {
			s.logger.Debugw("Profile operation rejected",
				"operation", operation,
				"owner_id", owner,
				"result", result,
				"error", err,
			)
		}
	}
	return err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

type document[T any] interface {
	*T
	Touch(now time.Time)
}

// mutate decodes the stored document, applies fn and writes it back when fn
// reports a change. The returned document is the committed state, or the
// current state when nothing changed.
func mutate[T any, P document[T]](ctx context.Context, s *ProfileService, key domain.DocumentKey, fn func(doc P, now time.Time) (bool, error)) (P, error) {
	var out P
	_, err := s.store.Update(ctx, key, func(current []byte) ([]byte, error) {
		doc := P(new(T))
		if err := s.codec.Unmarshal(current, doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}

		now := s.now()
		changed, err := fn(doc, now)
		if err != nil {
			return nil, err
		}
		out = doc
		if !changed {
			return nil, nil
		}
		doc.Touch(now)
		return s.codec.Marshal(doc)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func load[T any](ctx context.Context, s *ProfileService, key domain.DocumentKey) (*T, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	doc := new(T)
	if err := s.codec.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, nil
}

func curatorKey(curator domain.UserID) domain.DocumentKey {
	return domain.ProfileKey(curator, domain.VariantCurator)
}

func checkVariant(v domain.Variant) error {
	_, err := domain.ParseVariant(string(v))
	return err
}

type noopProfileMetrics struct{}

func (noopProfileMetrics) RecordProfileOperation(string, string, time.Duration) {}
