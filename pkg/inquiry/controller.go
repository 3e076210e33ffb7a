package inquiry

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/inquiry-pipeline/pkg/apiresponses"
	"github.com/telekom/inquiry-pipeline/pkg/delivery"
	"github.com/telekom/inquiry-pipeline/pkg/system"
)

// SubmitRequest is the body of POST /api/inquiries.
type SubmitRequest struct {
	FormType         string           `json:"formType" binding:"required"`
	Locale           string           `json:"locale"`
	Data             []delivery.Field `json:"data" binding:"required,min=1"`
	SessionID        string           `json:"sessionId"`
	AnalyticsConsent bool             `json:"analyticsConsent"`
}

// InquiryController serves the public submission endpoint.
type InquiryController struct {
	log     *zap.SugaredLogger
	service *Service
	salt    string
}

func NewInquiryController(log *zap.SugaredLogger, service *Service, identitySalt string) *InquiryController {
	return &InquiryController{log: log, service: service, salt: identitySalt}
}

func (InquiryController) BasePath() string {
	return "inquiries"
}

func (ic *InquiryController) Handlers() []gin.HandlerFunc {
	return nil
}

func (ic *InquiryController) Register(rg *gin.RouterGroup) error {
	rg.POST("", instrumentedHandler("handleSubmitInquiry", ic.handleSubmit))
	return nil
}

func (ic *InquiryController) handleSubmit(c *gin.Context) {
	log := system.GetReqLogger(c, ic.log)

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debugw("Rejected malformed inquiry", "error", err)
		apiresponses.RespondBadRequestWithDetails(c, "invalid inquiry", err.Error())
		return
	}

	sub := Submission{
		Identity:  HashIdentity(ic.salt, c.ClientIP()),
		SessionID: req.SessionID,
		Consent:   req.AnalyticsConsent,
		Payload: delivery.Payload{
			Data:     req.Data,
			FormType: req.FormType,
			Locale:   req.Locale,
		},
	}
	res, err := ic.service.Submit(c.Request.Context(), sub)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, ErrInvalidSubmission):
		apiresponses.RespondBadRequest(c, err.Error())
	case errors.Is(err, ErrRateLimited):
		apiresponses.RespondTooManyRequests(c, res.Message, res.RetryAfter)
	default:
		apiresponses.RespondInternalError(c, "submit inquiry", err, log)
	}
}
