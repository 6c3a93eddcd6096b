package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ProfileMeta is shared by every profile variant.
type ProfileMeta struct {
	OwnerID   UserID    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *ProfileMeta) Touch(now time.Time) {
	m.UpdatedAt = now
}

type WatchlistItem struct {
	MovieID string    `json:"movieId"`
	AddedAt time.Time `json:"addedAt"`
}

type ViewerProfile struct {
	ProfileMeta
	Watchlist []WatchlistItem `json:"watchlist"`
}

type ListMovie struct {
	MovieID     string    `json:"movieId"`
	MovieTitle  string    `json:"movieTitle"`
	MoviePoster string    `json:"moviePoster,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
}

type CuratedList struct {
	ListID      string      `json:"listId"`
	ListName    string      `json:"listName"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"createdAt"`
	Movies      []ListMovie `json:"movies"`
}

// ListPatch carries the optional fields of a curated list update.
type ListPatch struct {
	Name        *string
	Description *string
}

func (p ListPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil
}

type Recommendation struct {
	MovieID   string    `json:"movieId"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

type CuratorProfile struct {
	ProfileMeta
	Expertise       []string         `json:"expertise"`
	FollowersCount  int              `json:"followersCount"`
	ListsCount      int              `json:"listsCount"`
	CuratedLists    []CuratedList    `json:"curatedLists"`
	Recommendations []Recommendation `json:"recommendations"`
}

type ActivityEntry struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

type AdminProfile struct {
	ProfileMeta
	ActivityLog []ActivityEntry `json:"activityLog"`
}

// ProfileFields holds the initial values accepted on creation. Fields that do
// not belong to the created variant are dropped.
type ProfileFields struct {
	Expertise []string `json:"expertise"`
	Watchlist []string `json:"watchlist"`
}

// Profile is a tagged union over the three variants; exactly one pointer is set.
type Profile struct {
	Variant Variant
	Viewer  *ViewerProfile
	Curator *CuratorProfile
	Admin   *AdminProfile
}

// Document returns the variant body that is persisted and rendered.
func (p Profile) Document() any {
	switch p.Variant {
	case VariantViewer:
		return p.Viewer
	case VariantCurator:
		return p.Curator
	case VariantAdmin:
		return p.Admin
	default:
		return nil
	}
}

func NewProfile(owner UserID, variant Variant, fields ProfileFields, now time.Time) (Profile, error) {
	meta := ProfileMeta{OwnerID: owner, CreatedAt: now, UpdatedAt: now}

	switch variant {
	case VariantViewer:
		viewer := &ViewerProfile{ProfileMeta: meta, Watchlist: []WatchlistItem{}}
		for _, movieID := range fields.Watchlist {
			viewer.AddToWatchlist(movieID, now)
		}
		return Profile{Variant: variant, Viewer: viewer}, nil
	case VariantCurator:
		return Profile{Variant: variant, Curator: &CuratorProfile{
			ProfileMeta:     meta,
			Expertise:       NormalizeTags(fields.Expertise),
			CuratedLists:    []CuratedList{},
			Recommendations: []Recommendation{},
		}}, nil
	case VariantAdmin:
		return Profile{Variant: variant, Admin: &AdminProfile{
			ProfileMeta: meta,
			ActivityLog: []ActivityEntry{},
		}}, nil
	default:
		return Profile{}, fmt.Errorf("%w: unknown profile variant %q", ErrInvalidInput, variant)
	}
}

// AddToWatchlist appends movieID unless it is already present.
func (p *ViewerProfile) AddToWatchlist(movieID string, now time.Time) bool {
	if slices.ContainsFunc(p.Watchlist, func(item WatchlistItem) bool { return item.MovieID == movieID }) {
		return false
	}
	p.Watchlist = append(p.Watchlist, WatchlistItem{MovieID: movieID, AddedAt: now})
	return true
}

func (p *ViewerProfile) RemoveFromWatchlist(movieID string) bool {
	n := len(p.Watchlist)
	p.Watchlist = slices.DeleteFunc(p.Watchlist, func(item WatchlistItem) bool { return item.MovieID == movieID })
	return len(p.Watchlist) != n
}

// NormalizeTags trims tags, drops empties and duplicates, and keeps first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func (p *CuratorProfile) SetExpertise(tags []string) bool {
	next := NormalizeTags(tags)
	if slices.Equal(next, p.Expertise) {
		return false
	}
	p.Expertise = next
	return true
}

func (p *CuratorProfile) findList(listID string) int {
	return slices.IndexFunc(p.CuratedLists, func(l CuratedList) bool { return l.ListID == listID })
}

// AddList appends a new list; listsCount is kept equal to len(curatedLists).
func (p *CuratorProfile) AddList(list CuratedList) error {
	if p.findList(list.ListID) >= 0 {
		return fmt.Errorf("curated list %s: %w", list.ListID, ErrConflict)
	}
	if list.Movies == nil {
		list.Movies = []ListMovie{}
	}
	p.CuratedLists = append(p.CuratedLists, list)
	p.ListsCount = len(p.CuratedLists)
	return nil
}

func (p *CuratorProfile) UpdateList(listID string, patch ListPatch) (CuratedList, bool, error) {
	i := p.findList(listID)
	if i < 0 {
		return CuratedList{}, false, fmt.Errorf("curated list %s: %w", listID, ErrNotFound)
	}

	list := &p.CuratedLists[i]
	changed := false
	if patch.Name != nil && *patch.Name != list.ListName {
		list.ListName = *patch.Name
		changed = true
	}
	if patch.Description != nil && *patch.Description != list.Description {
		list.Description = *patch.Description
		changed = true
	}
	return *list, changed, nil
}

func (p *CuratorProfile) DeleteList(listID string) error {
	i := p.findList(listID)
	if i < 0 {
		return fmt.Errorf("curated list %s: %w", listID, ErrNotFound)
	}
	p.CuratedLists = slices.Delete(p.CuratedLists, i, i+1)
	p.ListsCount = len(p.CuratedLists)
	return nil
}

// AddMovie appends movie to the list unless its movieId is already there.
func (p *CuratorProfile) AddMovie(listID string, movie ListMovie) (CuratedList, bool, error) {
	i := p.findList(listID)
	if i < 0 {
		return CuratedList{}, false, fmt.Errorf("curated list %s: %w", listID, ErrNotFound)
	}

	list := &p.CuratedLists[i]
	if slices.ContainsFunc(list.Movies, func(m ListMovie) bool { return m.MovieID == movie.MovieID }) {
		return *list, false, nil
	}
	list.Movies = append(list.Movies, movie)
	return *list, true, nil
}

// RemoveMovie drops movieID from the list. A missing movie is not an error.
func (p *CuratorProfile) RemoveMovie(listID, movieID string) (CuratedList, bool, error) {
	i := p.findList(listID)
	if i < 0 {
		return CuratedList{}, false, fmt.Errorf("curated list %s: %w", listID, ErrNotFound)
	}

	list := &p.CuratedLists[i]
	n := len(list.Movies)
	list.Movies = slices.DeleteFunc(list.Movies, func(m ListMovie) bool { return m.MovieID == movieID })
	return *list, len(list.Movies) != n, nil
}

func (p *CuratorProfile) AddRecommendation(rec Recommendation) {
	p.Recommendations = append(p.Recommendations, rec)
}

func (p *AdminProfile) AppendActivity(entry ActivityEntry) {
	p.ActivityLog = append(p.ActivityLog, entry)
}
