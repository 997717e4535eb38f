package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/IliaW/page-capture/internal/capture"
	"github.com/IliaW/page-capture/internal/model"
	"github.com/labstack/echo/v4"
)

const MsgServerError = "The server encountered an error."

type CaptureHandler struct {
	svc capture.Service
}

func NewCaptureHandler(svc capture.Service) *CaptureHandler {
	return &CaptureHandler{svc: svc}
}

// Screenshot captures a png of the page.
// GET /screenshot?url=&ratio=&force=
func (h *CaptureHandler) Screenshot(c echo.Context) error {
	ratio, err := capture.ParseRatio(c.QueryParam("ratio"))
	if err != nil {
		// rejected by the service once the url is known to be valid
		ratio = math.NaN()
	}

	res, err := h.svc.Screenshot(c.Request().Context(), &model.CaptureRequest{
		URL:   c.QueryParam("url"),
		Mode:  model.Screenshot,
		Ratio: ratio,
		Force: capture.ParseForce(c.QueryParam("force")),
	})
	return h.respond(c, res, err)
}

// Website downloads the rendered page as html (mode=content) or mhtml (mode=snapshot).
// GET /website?url=&mode=&force=
func (h *CaptureHandler) Website(c echo.Context) error {
	res, err := h.svc.Download(c.Request().Context(), &model.CaptureRequest{
		URL:   c.QueryParam("url"),
		Mode:  model.ParseDownloadMode(c.QueryParam("mode")),
		Force: capture.ParseForce(c.QueryParam("force")),
	})
	return h.respond(c, res, err)
}

func (h *CaptureHandler) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

func (h *CaptureHandler) respond(c echo.Context, res *model.CaptureResult, err error) error {
	if err != nil {
		var inputErr *capture.InputError
		if errors.As(err, &inputErr) {
			return c.String(http.StatusBadRequest, inputErr.Msg)
		}
		slog.Error("capture request failed.", slog.String("url", c.QueryParam("url")),
			slog.String("err", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": MsgServerError})
	}
	return c.JSON(http.StatusOK, res)
}
