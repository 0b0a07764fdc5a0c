package server

import (
	"context"
	"log/slog"
	"net/http"

	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/handler"
	appmw "farmland-checkout/internal/middleware"
	"farmland-checkout/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Services struct {
	Payment service.PaymentService
	Order   service.OrderService
	Rewards service.RewardsService
	User    service.UserService
}

type Server struct {
	echo             *echo.Echo
	auth             echo.MiddlewareFunc
	paymentHandler   *handler.PaymentHandler
	braintreeHandler *handler.BraintreeHandler
	orderHandler     *handler.OrderHandler
	rewardsHandler   *handler.RewardsHandler
	userHandler      *handler.UserHandler
}

func NewServer(services Services, jwtSecret []byte, log *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:             e,
		auth:             appmw.AuthMiddleware(jwtSecret),
		paymentHandler:   handler.NewPaymentHandler(services.Payment),
		braintreeHandler: handler.NewBraintreeHandler(services.Payment),
		orderHandler:     handler.NewOrderHandler(services.Order),
		rewardsHandler:   handler.NewRewardsHandler(services.Rewards),
		userHandler:      handler.NewUserHandler(services.User),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- authorize.net hosted checkout --------
	authorize := api.Group("/authorize")
	authorize.POST("/create-transaction", s.paymentHandler.CreateTransaction, s.auth)
	authorize.GET("/check-payment-status", s.paymentHandler.CheckPaymentStatus, s.auth)
	authorize.GET("/redirect/:referenceId", s.paymentHandler.Redirect, s.auth)
	authorize.POST("/webhook", s.paymentHandler.Webhook)

	// -------- braintree drop-in (browser form posts) --------
	braintree := api.Group("/braintree")
	braintree.POST("/checkout", s.braintreeHandler.Checkout)
	braintree.POST("/charge", s.braintreeHandler.Charge)

	// -------- shopper --------
	shopper := api.Group("", s.auth)
	shopper.GET("/me", s.userHandler.Profile)
	shopper.GET("/orders", s.orderHandler.List)
	shopper.GET("/orders/:orderNumber", s.orderHandler.Get)
	shopper.POST("/orders/:orderNumber/cancel", s.orderHandler.Cancel)
	shopper.GET("/rewards", s.rewardsHandler.Catalog)
	shopper.POST("/rewards/claim", s.rewardsHandler.Claim)
	shopper.GET("/coupons", s.rewardsHandler.Coupons)

	// -------- store portal --------
	portal := api.Group("/portal", s.auth, appmw.RequireRole(dto.RoleStaff))
	portal.POST("/orders/:orderNumber/ready", s.orderHandler.MarkReady)
	portal.POST("/coupons/:code/redeem", s.rewardsHandler.Redeem)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
