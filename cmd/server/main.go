package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"rider-order-sync/internal/client"
	"rider-order-sync/internal/config"
	"rider-order-sync/internal/controller"
	"rider-order-sync/internal/logger"
	"rider-order-sync/internal/metrics"
	"rider-order-sync/internal/model"
	"rider-order-sync/internal/push"
	"rider-order-sync/internal/rabbit"
	"rider-order-sync/internal/service"
	"rider-order-sync/internal/synchronizer"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuración inválida: %v", err)
	}

	lg, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error creando logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cliente del backend y sesión del rider
	backend := client.New(cfg.BackendURL, client.Paths{
		RiderOrders: cfg.RiderOrdersPath,
		UpdateOrder: cfg.UpdateOrderPath,
		Profile:     cfg.ProfilePath,
		OrderScan:   cfg.OrderScanPath,
		Login:       cfg.LoginPath,
	}, cfg.HTTPTimeout)
	authService := service.NewAuthService(backend, cfg.APIToken)

	session, err := authService.EstablishSession(ctx, cfg.RiderID, cfg.RiderToken, cfg.RiderEmail, cfg.RiderPassword)
	if err != nil {
		lg.Errorf(ctx, "❌ Error abriendo sesión del rider: %v", err)
		os.Exit(1)
	}
	backend = backend.WithToken(session.Token)
	ctx = logger.With(ctx, logger.RiderIDKey, session.RiderID)

	// Sincronizador y servicios
	m := metrics.New()
	store := synchronizer.New()
	profile := service.NewProfileService(backend, lg, session)
	orders := service.NewOrderService(backend, store, profile, m, lg, session)
	scans := service.NewScanService(backend, store)

	// Carga inicial; si falla, el resync la reintenta
	go orders.RunResync(ctx)
	if err := orders.Refresh(ctx); err != nil {
		orders.RequestResync()
	}
	if _, err := profile.Load(ctx); err != nil {
		lg.Warnf(ctx, "Iniciando sin perfil del rider: %v", err)
	}

	// Canal push: cada (re)conexión pide un resync por los eventos perdidos
	src, closeSrc := pushSource(cfg, session, lg, orders.RequestResync)
	defer closeSrc()
	go func() {
		if err := src.Run(ctx, orders.HandleEvent); err != nil {
			lg.Errorf(ctx, "❌ Canal push detenido: %v", err)
		}
	}()

	// Router (rutas públicas y protegidas en controller.NewRouter)
	ctl := controller.NewOrderController(orders, scans, profile)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: controller.NewRouter(ctl, authService, m, lg),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// Ejecutar servidor
	lg.Infof(ctx, "🛵 Rider Sync Agent ejecutándose en puerto %s (push: %s)", cfg.Port, cfg.PushTransport)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Errorf(ctx, "❌ Error en servidor HTTP: %v", err)
		os.Exit(1)
	}
}

func pushSource(cfg *config.Config, session model.Session, lg logger.Logger, onConnect func()) (push.Source, func()) {
	const lo, hi = time.Second, 30 * time.Second

	switch cfg.PushTransport {
	case config.TransportRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		src := push.NewRedisSource(rdb, session.RiderID, lg)
		src.OnConnect = onConnect
		return push.NewReconnecting("Redis", src, lg, lo, hi), func() { _ = rdb.Close() }
	case config.TransportAMQP:
		consumer := rabbit.NewRoomConsumer(cfg.RabbitURL, cfg.RabbitExchange, session.RiderID, lg)
		consumer.OnConnect = onConnect
		return push.NewReconnecting("Rabbit", consumer, lg, lo, hi), func() {}
	default:
		src := push.NewWebSocketSource(cfg.PushURL, session.RiderID, session.Token, lg)
		src.OnConnect = onConnect
		return push.NewReconnecting("WebSocket", src, lg, lo, hi), func() {}
	}
}
