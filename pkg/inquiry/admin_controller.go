// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package inquiry

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/inquiry-pipeline/pkg/apiresponses"
	"github.com/telekom/inquiry-pipeline/pkg/delivery"
	"github.com/telekom/inquiry-pipeline/pkg/system"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// DeliveryLister reads the failed-delivery queue.
type DeliveryLister interface {
	List(ctx context.Context, status delivery.Status, limit int) ([]delivery.Record, error)
}

// AdminController exposes the failed-delivery queue to operators.
type AdminController struct {
	log        *zap.SugaredLogger
	service    *Service
	deliveries DeliveryLister
	middleware gin.HandlerFunc
}

func NewAdminController(log *zap.SugaredLogger, service *Service, deliveries DeliveryLister, adminToken string) *AdminController {
	return &AdminController{
		log:        log,
		service:    service,
		deliveries: deliveries,
		middleware: BearerAuth(adminToken),
	}
}

func (AdminController) BasePath() string {
	return "admin"
}

func (ac *AdminController) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{ac.middleware}
}

func (ac *AdminController) Register(rg *gin.RouterGroup) error {
	rg.GET("deliveries", instrumentedHandler("handleListDeliveries", ac.handleListDeliveries))
	rg.POST("deliveries/retry", instrumentedHandler("handleRetryDeliveries", ac.handleRetryDeliveries))
	return nil
}

// BearerAuth admits requests carrying "Authorization: Bearer <token>". With an
// empty token every request is refused.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			apiresponses.RespondServiceUnavailable(c, "admin api", "no admin token configured")
			c.Abort()
			return
		}
		header := c.GetHeader("Authorization")
		given, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(given)), []byte(token)) != 1 {
			apiresponses.RespondUnauthorized(c, "invalid or missing admin token")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (ac *AdminController) handleListDeliveries(c *gin.Context) {
	log := system.GetReqLogger(c, ac.log)

	status, err := delivery.ParseStatus(c.Query("status"))
	if err != nil {
		apiresponses.RespondBadRequest(c, err.Error())
		return
	}
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			apiresponses.RespondBadRequestWithDetails(c, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = min(limit, maxListLimit)
	}

	records, err := ac.deliveries.List(c.Request.Context(), status, limit)
	if err != nil {
		apiresponses.RespondInternalError(c, "list deliveries", err, log)
		return
	}
	// operators see the queue state, not the submitter's personal data
	for i := range records {
		records[i].Payload = records[i].Payload.Masked()
	}
	if records == nil {
		records = []delivery.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": records, "count": len(records)})
}

func (ac *AdminController) handleRetryDeliveries(c *gin.Context) {
	log := system.GetReqLogger(c, ac.log)
	res, err := ac.service.ProcessFailedDeliveries(c.Request.Context())
	if errors.Is(err, delivery.ErrSweepInProgress) {
		apiresponses.RespondConflict(c, err.Error())
		return
	}
	if err != nil {
		apiresponses.RespondInternalError(c, "process failed deliveries", err, log)
		return
	}
	log.Infow("Manual retry sweep finished", "processed", res.Processed, "sent", res.Sent, "failed", res.Failed)
	apiresponses.RespondOK(c, res)
}
