package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/cardgame-backend/internal/config"
	"github.com/iliyamo/cardgame-backend/internal/handler"
	"github.com/iliyamo/cardgame-backend/internal/middleware"
)

// NewEcho builds the echo instance with the middleware chain shared by
// every route.  CORS runs as a pre-router middleware so preflight and
// unknown paths also carry the headers.
func NewEcho(cfg config.Config, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Pre(middleware.CORS(middleware.CORSConfig{EchoOrigin: cfg.CORSEchoOrigin}))
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Recover(log))
	e.Use(echomw.BodyLimit(cfg.MaxBody))
	return e
}
