package ports

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ProfileHTTPHandler interface {
	SetupRoutes(group *gin.RouterGroup)
}

type PresenceHandler interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}
