package httptransport

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"nutrilens-server-go/internal/domain/pipeline"
	platformerrors "nutrilens-server-go/internal/platform/errors"
)

// Client-facing messages. Causes are logged, never returned.
const (
	MessageNoFood          = "No food detected in the uploaded image. Please upload an image containing food."
	MessageIdentifyFailed  = "Failed to perform detailed food analysis."
	MessageAggregateFailed = "Failed to generate comprehensive nutritional summary."
	MessageGateFailed      = "Failed to classify the uploaded image."
	MessageInternal        = "Internal server error."
	MessageUnauthorized    = "Not authenticated."
)

const (
	ReasonValidation   = "validation"
	ReasonNoFood       = "no_food"
	ReasonUpstream     = "upstream"
	ReasonInternal     = "internal"
	ReasonUnauthorized = "unauthorized"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// RespondError writes an ErrorResponse and aborts the handler chain.
func RespondError(c *gin.Context, status int, detail, reason string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Detail: detail, Code: status, Reason: reason})
}

// Classify maps a pipeline or intake error to its status and stable message.
func Classify(err error) ErrorResponse {
	var typed *platformerrors.Error
	switch {
	case platformerrors.IsKind(err, platformerrors.KindValidation):
		detail := "Invalid request."
		if stderrors.As(err, &typed) && typed.Message != "" {
			detail = typed.Message
		}
		return ErrorResponse{Detail: detail, Code: http.StatusBadRequest, Reason: ReasonValidation}
	case platformerrors.IsKind(err, platformerrors.KindGate):
		return ErrorResponse{Detail: MessageNoFood, Code: http.StatusBadRequest, Reason: ReasonNoFood}
	}

	switch platformerrors.OpOf(err) {
	case pipeline.OpGate:
		return ErrorResponse{Detail: MessageGateFailed, Code: http.StatusInternalServerError, Reason: ReasonUpstream}
	case pipeline.OpIdentify:
		return ErrorResponse{Detail: MessageIdentifyFailed, Code: http.StatusInternalServerError, Reason: ReasonInternal}
	case pipeline.OpAggregate:
		return ErrorResponse{Detail: MessageAggregateFailed, Code: http.StatusInternalServerError, Reason: ReasonInternal}
	}
	return ErrorResponse{Detail: MessageInternal, Code: http.StatusInternalServerError, Reason: ReasonInternal}
}

// RespondFromError classifies err and writes the matching ErrorResponse.
func RespondFromError(c *gin.Context, err error) {
	resp := Classify(err)
	_ = c.Error(err)
	RespondError(c, resp.Code, resp.Detail, resp.Reason)
}
