package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
	"github.com/i474232898/hellas-grid-monitor/internal/export"
	"github.com/i474232898/hellas-grid-monitor/internal/grid"
	"github.com/i474232898/hellas-grid-monitor/internal/plants"
	"github.com/i474232898/hellas-grid-monitor/internal/weather"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

// Deps are the services behind the API.
type Deps struct {
	Grid         *grid.Service
	Weather      *weather.Service
	Plants       *plants.Registry
	ExportPrefix string
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
// Unavailable providers map to 503 so clients show a "data unavailable"
// state instead of empty charts.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, common.ErrProviderUnavailable):
		code = fiber.StatusServiceUnavailable
		err = fmt.Errorf("data unavailable: %w", err)
	case errors.Is(err, grid.ErrInvalidRange):
		code = fiber.StatusBadRequest
	case errors.Is(err, grid.ErrRowNotFound):
		code = fiber.StatusNotFound
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/grid/snapshot", func(c *fiber.Ctx) error {
		r, err := parseRange(c, deps.Grid)
		if err != nil {
			return err
		}

		d, err := deps.Grid.Dashboard(c.UserContext(), r)
		if err != nil {
			return err
		}
		return c.JSON(d)
	})

	v1.Get("/grid/metrics", func(c *fiber.Ctx) error {
		r, err := parseRange(c, deps.Grid)
		if err != nil {
			return err
		}

		if at := c.Query("at"); at != "" {
			ts, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid at; use RFC3339")
			}
			m, err := deps.Grid.MetricsAt(c.UserContext(), r, ts)
			if err != nil {
				return err
			}
			return c.JSON(m)
		}

		d, err := deps.Grid.Dashboard(c.UserContext(), r)
		if err != nil {
			return err
		}
		if d.Metrics == nil {
			return fiber.NewError(fiber.StatusNotFound, "no complete generation row in requested range")
		}
		return c.JSON(fiber.Map{
			"metrics": d.Metrics,
			"sources": d.Sources,
		})
	})

	v1.Get("/grid/forecast", func(c *fiber.Ctx) error {
		fc, err := deps.Grid.Forecast(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fc)
	})

	v1.Get("/grid/export", func(c *fiber.Ctx) error {
		r, err := parseRange(c, deps.Grid)
		if err != nil {
			return err
		}

		d, err := deps.Grid.Dashboard(c.UserContext(), r)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, d.Snapshot); err != nil {
			return err
		}
		c.Attachment(export.Filename(deps.ExportPrefix, d.Range))
		c.Set(fiber.HeaderContentType, export.ContentType)
		return c.Send(buf.Bytes())
	})

	v1.Get("/plants", func(c *fiber.Ctx) error {
		return c.JSON(deps.Plants.All())
	})

	v1.Get("/plants/status", func(c *fiber.Ctx) error {
		statuses := deps.Weather.Statuses(c.UserContext(), deps.Plants.Sites())

		out := make([]plantStatus, 0, len(statuses))
		for _, st := range statuses {
			p, _ := deps.Plants.ByName(st.Name)
			out = append(out, plantStatus{Plant: p, SiteStatus: st, Label: st.Status.String()})
		}
		return c.JSON(out)
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		deps.Grid.Refresh()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"refreshed": true})
	})
}

type plantStatus struct {
	Plant plants.Plant `json:"plant"`
	weather.SiteStatus
	Label string `json:"label"`
}

// rangeQuery holds the from/to query parameters of grid endpoints.
type rangeQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

// parseRange reads from/to as calendar days in the grid timezone, defaulting
// to yesterday through today.
func parseRange(c *fiber.Ctx, svc *grid.Service) (grid.DateRange, error) {
	def := svc.DefaultRange()
	q := rangeQuery{From: def.From, To: def.To}

	if s := c.Query("from"); s != "" {
		from, err := time.ParseInLocation(dateLayout, s, svc.Location())
		if err != nil {
			return grid.DateRange{}, fiber.NewError(fiber.StatusBadRequest, "invalid from; use YYYY-MM-DD")
		}
		q.From = from
	}
	if s := c.Query("to"); s != "" {
		to, err := time.ParseInLocation(dateLayout, s, svc.Location())
		if err != nil {
			return grid.DateRange{}, fiber.NewError(fiber.StatusBadRequest, "invalid to; use YYYY-MM-DD")
		}
		q.To = to
	}

	if err := validate.Struct(q); err != nil {
		return grid.DateRange{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	r := grid.DateRange{From: q.From, To: q.To}
	if err := svc.ValidateRange(r); err != nil {
		return grid.DateRange{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return r, nil
}
