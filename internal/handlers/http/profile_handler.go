package http

import (
	"errors"
	"io"
	"net/http"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"
	"reelhub/internal/infrastructure/middleware"
	apperrors "reelhub/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profiles ports.ProfileService
}

func NewProfileHandler(profiles ports.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
	}
}

var _ ports.ProfileHTTPHandler = (*ProfileHandler)(nil)

// SetupRoutes mounts the profile routes on group, which is expected to sit
// behind AuthMiddleware.
func (h *ProfileHandler) SetupRoutes(group *gin.RouterGroup) {
	profiles := group.Group("/profiles")
	{
		viewer := profiles.Group("/viewer/:userId")
		viewer.POST("", h.createProfile(domain.VariantViewer))
		viewer.GET("", h.getProfile(domain.VariantViewer))
		viewer.POST("/watchlist", h.AddWatchlistItem)
		viewer.DELETE("/watchlist/:movieId", h.RemoveWatchlistItem)

		curator := profiles.Group("/curator/:userId")
		curator.POST("", h.createProfile(domain.VariantCurator))
		curator.GET("", h.getProfile(domain.VariantCurator))
		curator.PUT("/expertise", h.UpdateExpertise)
		curator.POST("/recommendations", h.AddRecommendation)
		curator.GET("/lists", h.ListCuratedLists)
		curator.POST("/lists", h.CreateCuratedList)
		curator.PUT("/lists/:listId", h.UpdateCuratedList)
		curator.DELETE("/lists/:listId", h.DeleteCuratedList)
		curator.POST("/lists/:listId/movies", h.AddMovieToList)
		curator.DELETE("/lists/:listId/movies/:movieId", h.RemoveMovieFromList)

		admin := profiles.Group("/admin/:userId")
		admin.POST("", h.createProfile(domain.VariantAdmin))
		admin.GET("", h.getProfile(domain.VariantAdmin))
		admin.POST("/activity", h.AppendActivityLog)
	}
}

func (h *ProfileHandler) createProfile(variant domain.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		var fields domain.ProfileFields
		if !bindOptionalJSON(c, &fields) {
			return
		}

		profile, err := h.profiles.CreateProfile(c.Request.Context(), middleware.IdentityFrom(c), owner(c), variant, fields)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"profile": profile.Document(),
		})
	}
}

func (h *ProfileHandler) getProfile(variant domain.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := h.profiles.GetProfile(c.Request.Context(), middleware.IdentityFrom(c), owner(c), variant)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"profile": profile.Document(),
		})
	}
}

func (h *ProfileHandler) AddWatchlistItem(c *gin.Context) {
	var req struct {
		MovieID string `json:"movieId" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	doc, err := h.profiles.AddWatchlistItem(c.Request.Context(), middleware.IdentityFrom(c), owner(c), req.MovieID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": doc})
}

func (h *ProfileHandler) RemoveWatchlistItem(c *gin.Context) {
	doc, err := h.profiles.RemoveWatchlistItem(c.Request.Context(), middleware.IdentityFrom(c), owner(c), c.Param("movieId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": doc})
}

func (h *ProfileHandler) UpdateExpertise(c *gin.Context) {
	var req struct {
		Expertise []string `json:"expertise" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	doc, err := h.profiles.UpdateExpertise(c.Request.Context(), middleware.IdentityFrom(c), owner(c), req.Expertise)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": doc})
}

func (h *ProfileHandler) AddRecommendation(c *gin.Context) {
	var req struct {
		MovieID string `json:"movieId" binding:"required"`
		Reason  string `json:"reason"`
	}
	if !bindJSON(c, &req) {
		return
	}

	doc, err := h.profiles.AddRecommendation(c.Request.Context(), middleware.IdentityFrom(c), owner(c), req.MovieID, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": doc})
}

func (h *ProfileHandler) ListCuratedLists(c *gin.Context) {
	lists, err := h.profiles.ListCuratedLists(c.Request.Context(), middleware.IdentityFrom(c), owner(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lists": lists})
}

func (h *ProfileHandler) CreateCuratedList(c *gin.Context) {
	var req struct {
		ListName    string `json:"listName" binding:"required"`
		Description string `json:"description"`
	}
	if !bindJSON(c, &req) {
		return
	}

	list, doc, err := h.profiles.CreateCuratedList(c.Request.Context(), middleware.IdentityFrom(c), owner(c), req.ListName, req.Description)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"list":       list,
		"listsCount": doc.ListsCount,
	})
}

func (h *ProfileHandler) UpdateCuratedList(c *gin.Context) {
	var req struct {
		ListName    *string `json:"listName"`
		Description *string `json:"description"`
	}
	if !bindJSON(c, &req) {
		return
	}

	patch := domain.ListPatch{Name: req.ListName, Description: req.Description}
	list, err := h.profiles.UpdateCuratedList(c.Request.Context(), middleware.IdentityFrom(c), owner(c), c.Param("listId"), patch)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *ProfileHandler) DeleteCuratedList(c *gin.Context) {
	doc, err := h.profiles.DeleteCuratedList(c.Request.Context(), middleware.IdentityFrom(c), owner(c), c.Param("listId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listsCount": doc.ListsCount})
}

func (h *ProfileHandler) AddMovieToList(c *gin.Context) {
	var req struct {
		MovieID     string `json:"movieId" binding:"required"`
		MovieTitle  string `json:"movieTitle"`
		MoviePoster string `json:"moviePoster"`
	}
	if !bindJSON(c, &req) {
		return
	}

	movie := domain.ListMovie{MovieID: req.MovieID, MovieTitle: req.MovieTitle, MoviePoster: req.MoviePoster}
	list, err := h.profiles.AddMovieToList(c.Request.Context(), middleware.IdentityFrom(c), owner(c), c.Param("listId"), movie)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *ProfileHandler) RemoveMovieFromList(c *gin.Context) {
	list, err := h.profiles.RemoveMovieFromList(c.Request.Context(), middleware.IdentityFrom(c), owner(c), c.Param("listId"), c.Param("movieId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *ProfileHandler) AppendActivityLog(c *gin.Context) {
	var req struct {
		Action  string `json:"action" binding:"required"`
		Details string `json:"details"`
	}
	if !bindJSON(c, &req) {
		return
	}

	entry := domain.ActivityEntry{Action: req.Action, Details: req.Details}
	doc, err := h.profiles.AppendActivityLog(c.Request.Context(), middleware.IdentityFrom(c), owner(c), entry)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": doc})
}

func owner(c *gin.Context) domain.UserID {
	return domain.UserID(c.Param("userId"))
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body and leaves obj untouched.
func bindOptionalJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
	return false
}
