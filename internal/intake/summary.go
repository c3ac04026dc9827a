package intake

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"

	"payflow/internal/tracker"
)

type SummaryHandler struct {
	tracker *tracker.PgTracker
}

func NewSummaryHandler(tracker *tracker.PgTracker) *SummaryHandler {
	return &SummaryHandler{tracker: tracker}
}

func (h *SummaryHandler) Handle(c echo.Context) error {
	fromStr := c.QueryParam("from")
	toStr := c.QueryParam("to")

	var fromParam, toParam = pgtype.Timestamp{Valid: false}, pgtype.Timestamp{Valid: false}
	if fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.Logger().Errorf("Error parsing 'from' date: %v", err)
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid 'from' date format")
		}
		fromParam = pgtype.Timestamp{
			Valid: true,
			Time:  parsed,
		}
	}

	if toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.Logger().Errorf("Error parsing 'to' date: %v", err)
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid 'to' date format")
		}
		toParam = pgtype.Timestamp{
			Valid: true,
			Time:  parsed,
		}
	}

	summary, err := h.tracker.Summary(c.Request().Context(), fromParam, toParam)
	if err != nil {
		c.Logger().Errorf("Error while querying events: %v", err)
		return err
	}

	return c.JSON(http.StatusOK, summary)
}
