package api

import (
	"net/http"
	"parking_control/internal/api/handler"
	"parking_control/internal/api/middleware"
	"parking_control/internal/api/validation"
	"parking_control/internal/domain"
	"parking_control/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// Deps carries what the router wires. AuthService and LPRService are optional.
type Deps struct {
	ParkingSpotService *service.ParkingSpotService
	AuthService        *service.AuthService
	LPRService         *service.LPRService
	WebSocketManager   *handler.WebSocketManager
	Metrics            *middleware.Metrics
}

func SetupRouter(deps Deps) (*gin.Engine, error) {
	if err := validation.Register(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// Without an auth service every route is open.
	authenticate := []gin.HandlerFunc{}
	adminOnly := []gin.HandlerFunc{}
	if deps.AuthService != nil {
		authMw := middleware.NewAuthMiddleware(deps.AuthService)
		authenticate = append(authenticate, authMw.Authenticate())
		adminOnly = append(adminOnly, authMw.AuthorizeRole(domain.RoleAdmin))

		authHandler := handler.NewAuthHandler(deps.AuthService)
		authRoutes := r.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
		}
	}

	if deps.WebSocketManager != nil {
		wsHandler := handler.NewWebSocketHandler(deps.WebSocketManager)
		r.GET("/ws", withChain(authenticate, wsHandler.HandleWebSocket)...)
	}

	spotH := handler.NewParkingSpotHandler(deps.ParkingSpotService)
	spotRoutes := r.Group("/parking-spot", authenticate...)
	{
		spotRoutes.POST("", withChain(adminOnly, spotH.CreateParkingSpot)...)
		spotRoutes.GET("", spotH.GetAllParkingSpots)
		spotRoutes.GET("/:id", spotH.GetParkingSpotByID)
		spotRoutes.PUT("/:id", withChain(adminOnly, spotH.UpdateParkingSpot)...)
		spotRoutes.DELETE("/:id", withChain(adminOnly, spotH.DeleteParkingSpot)...)

		if deps.LPRService != nil {
			lprH := handler.NewLPRHandler(deps.LPRService, deps.ParkingSpotService)
			spotRoutes.POST("/lpr", lprH.RecognizePlate)
		}
	}

	return r, nil
}

// NewHTTPHandler wraps the router with CORS open to every origin.
func NewHTTPHandler(r *gin.Engine) http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		MaxAge:         3600,
	})
	return c.Handler(r)
}

func withChain(chain []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, h)
}
