package handlers

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"shoecreatify/internal/cache"
	"shoecreatify/internal/database"
	"shoecreatify/internal/utils"
)

type CommonHandler struct {
	db    database.Service
	redis *redis.Client
}

// NewCommonHandler builds the health endpoints. rdb may be nil when Redis is not configured.
func NewCommonHandler(db database.Service, rdb *redis.Client) *CommonHandler {
	return &CommonHandler{db: db, redis: rdb}
}

func (h *CommonHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	dbHealth := h.db.Health()
	resp := map[string]interface{}{"database": dbHealth}
	status := http.StatusOK
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
	}

	if h.redis != nil {
		rh := cache.Health(h.redis)
		resp["redis"] = rh
		if rh["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
	}

	utils.RespondWithJSON(w, status, resp)
}
