// Package rest is the on-demand sync surface: a small API that lets the CRM
// trigger a scoped or full reconciliation run and see the outcome
// synchronously.
package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/domain"
	"github.com/admitsync/admitsync/internal/usecase"
)

type Handler struct {
	engine *usecase.SyncEngine
	lock   usecase.RunLock
}

func NewHandler(engine *usecase.SyncEngine, lock usecase.RunLock) *Handler {
	return &Handler{engine: engine, lock: lock}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.handleHealth)
	e.GET("/sync", h.handleSyncOne)
	e.POST("/sync", h.handleSyncAll)
}

// NewServer builds the echo instance with the standard middleware chain.
func NewServer(cfg config.Server, h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if cfg.EnableTrace {
		e.Use(otelecho.Middleware("admitsync"))
	}
	h.RegisterRoutes(e)
	return e
}

func (h *Handler) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// handleSyncOne reconciles a single person on demand, typically wired to a
// button in the CRM. The caller gets the real outcome, including "this
// person has no submitted application".
func (h *Handler) handleSyncOne(c echo.Context) error {
	ctx := c.Request().Context()

	pid := c.QueryParam("pid")
	if pid == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pid is required"})
	}

	if err := h.lock.Acquire(ctx); err != nil {
		if errors.Is(err, domain.ErrRunBusy) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	defer h.lock.Release(ctx)

	res, err := h.engine.SyncOne(ctx, pid)
	if err != nil {
		if errors.Is(err, domain.ErrNoApplications) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "summary": res.Summary()})
}

func (h *Handler) handleSyncAll(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.lock.Acquire(ctx); err != nil {
		if errors.Is(err, domain.ErrRunBusy) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	defer h.lock.Release(ctx)

	res, err := h.engine.SyncAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "summary": res.Summary()})
}
