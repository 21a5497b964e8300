package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

// statusForKind maps taxonomy kinds onto HTTP statuses. Expired shares the
// not-found status so callers cannot probe whether a key id ever existed.
func statusForKind(kind keyerrors.Kind) int {
	switch kind {
	case keyerrors.KindInvalidArgument:
		return http.StatusBadRequest
	case keyerrors.KindUnauthorized:
		return http.StatusUnauthorized
	case keyerrors.KindNotFound, keyerrors.KindExpired:
		return http.StatusNotFound
	case keyerrors.KindGone:
		return http.StatusGone
	case keyerrors.KindConflict:
		return http.StatusConflict
	case keyerrors.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// wireKind is the kind as shown on the wire. Expired collapses into
// not_found, matching the status mapping.
func wireKind(kind keyerrors.Kind) keyerrors.Kind {
	if kind == keyerrors.KindExpired {
		return keyerrors.KindNotFound
	}
	return kind
}

func respondError(c *gin.Context, err error) {
	kind := keyerrors.KindOf(err)
	c.JSON(statusForKind(kind), gin.H{
		"error": keyerrors.MessageOf(err),
		"kind":  string(wireKind(kind)),
	})
}
