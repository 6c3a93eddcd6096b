package ports

import (
	"context"
	"time"

	"reelhub/internal/core/domain"
)

type ProfileService interface {
	CreateProfile(ctx context.Context, id domain.Identity, owner domain.UserID, variant domain.Variant, fields domain.ProfileFields) (domain.Profile, error)
	GetProfile(ctx context.Context, id domain.Identity, owner domain.UserID, variant domain.Variant) (domain.Profile, error)

	AddWatchlistItem(ctx context.Context, id domain.Identity, viewer domain.UserID, movieID string) (*domain.ViewerProfile, error)
	RemoveWatchlistItem(ctx context.Context, id domain.Identity, viewer domain.UserID, movieID string) (*domain.ViewerProfile, error)

	UpdateExpertise(ctx context.Context, id domain.Identity, curator domain.UserID, tags []string) (*domain.CuratorProfile, error)
	AddRecommendation(ctx context.Context, id domain.Identity, curator domain.UserID, movieID, reason string) (*domain.CuratorProfile, error)
	ListCuratedLists(ctx context.Context, id domain.Identity, curator domain.UserID) ([]domain.CuratedList, error)
	CreateCuratedList(ctx context.Context, id domain.Identity, curator domain.UserID, name, description string) (domain.CuratedList, *domain.CuratorProfile, error)
	UpdateCuratedList(ctx context.Context, id domain.Identity, curator domain.UserID, listID string, patch domain.ListPatch) (domain.CuratedList, error)
	DeleteCuratedList(ctx context.Context, id domain.Identity, curator domain.UserID, listID string) (*domain.CuratorProfile, error)
	AddMovieToList(ctx context.Context, id domain.Identity, curator domain.UserID, listID string, movie domain.ListMovie) (domain.CuratedList, error)
	RemoveMovieFromList(ctx context.Context, id domain.Identity, curator domain.UserID, listID, movieID string) (domain.CuratedList, error)

	AppendActivityLog(ctx context.Context, id domain.Identity, admin domain.UserID, entry domain.ActivityEntry) (*domain.AdminProfile, error)
}

type AuthorizationGate interface {
	Authorize(id domain.Identity, owner domain.UserID, class domain.OperationClass) error
}

// SessionHandle is one live client connection.
type SessionHandle interface {
	ID() domain.SessionID
	Send(msg any) error
}

type PresenceRegistry interface {
	Connect(userID domain.UserID, session SessionHandle) bool
	Disconnect(userID domain.UserID, session SessionHandle) bool
	ListOnline() []domain.UserID
	Sessions() []SessionHandle
}

type ProfileMetrics interface {
	RecordProfileOperation(operation, result string, duration time.Duration)
}

type PresenceMetrics interface {
	SetPresence(onlineUsers, sessions int)
	RecordDelivery(ok bool)
}
