package intake

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"payflow/internal/tracker"
)

type PurgeHandler struct {
	tracker *tracker.PgTracker
}

func NewPurgeHandler(tracker *tracker.PgTracker) *PurgeHandler {
	return &PurgeHandler{tracker: tracker}
}

func (h *PurgeHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()
	tr := otel.Tracer("purge-events-handler")
	ctx, span := tr.Start(ctx, "purge-events-handler", trace.WithAttributes(
		attribute.String("handler", "purge-events"),
	))
	defer span.End()

	if err := h.tracker.Purge(ctx); err != nil {
		span.RecordError(err)
		c.Logger().Errorf("Error purging events: %v", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	return c.NoContent(http.StatusOK)
}
