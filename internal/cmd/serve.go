package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"parking_control/internal/api"
	"parking_control/internal/api/handler"
	"parking_control/internal/api/middleware"
	"parking_control/internal/config"
	"parking_control/internal/iot"
	"parking_control/internal/logging"
	"parking_control/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.ServerPort = port
			}
			logging.Setup(cfg.LogLevel, cfg.LogFormat)
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides SERVER_PORT)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	clock := clockwork.NewRealClock()
	var wg sync.WaitGroup

	wsManager := handler.NewWebSocketManager()
	wg.Add(1)
	go func() {
		defer wg.Done()
		wsManager.Start(ctx)
	}()

	publishers := []service.EventPublisher{wsManager}

	var sqsClient *sqs.Client
	var rekognitionClient *rekognition.Client
	if cfg.UsesAWS() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		log.Info().Str("region", cfg.AWSRegion).Msg("aws sdk configured")

		if cfg.IoTMQTTEndpoint != "" {
			iotClient := iotdataplane.NewFromConfig(awsCfg, func(o *iotdataplane.Options) {
				endpoint := cfg.IoTMQTTEndpoint
				if !strings.HasPrefix(endpoint, "https://") && !strings.HasPrefix(endpoint, "http://") {
					endpoint = "https://" + endpoint
				}
				o.BaseEndpoint = aws.String(endpoint)
			})
			mqttPublisher := iot.NewMQTTPublisher(iotClient, cfg.IoTEventsTopic)
			wg.Add(1)
			go func() {
				defer wg.Done()
				mqttPublisher.Start(ctx)
			}()
			publishers = append(publishers, mqttPublisher)
		}
		if cfg.SQSRegistrationQueueURL != "" {
			sqsClient = sqs.NewFromConfig(awsCfg)
		}
		if cfg.LPREnabled {
			rekognitionClient = rekognition.NewFromConfig(awsCfg)
		}
	}

	parkingSpotService := service.NewParkingSpotService(db.ParkingSpots, clock, publishers...)

	deps := api.Deps{
		ParkingSpotService: parkingSpotService,
		WebSocketManager:   wsManager,
		Metrics:            middleware.NewMetrics(),
	}
	if cfg.AuthEnabled {
		authService := service.NewAuthService(db.Users, cfg.JWTSecret, cfg.JWTExpirationHours, clock)
		if cfg.AdminUsername != "" {
			if err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
				return err
			}
		}
		deps.AuthService = authService
	}
	if rekognitionClient != nil {
		deps.LPRService = service.NewLPRService(rekognitionClient)
	}

	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := api.SetupRouter(deps)
	if err != nil {
		return err
	}

	if sqsClient != nil {
		consumer := iot.NewSQSConsumer(sqsClient, cfg.SQSRegistrationQueueURL, parkingSpotService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Start(ctx)
		}()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: api.NewHTTPHandler(router),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		wg.Wait()
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("background workers did not stop in time")
	}

	log.Info().Msg("server stopped")
	return nil
}
