package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/realtime-service/config"
	"github.com/cwrk-planet/realtime-service/internal/logger"
	"github.com/cwrk-planet/realtime-service/internal/memstore"
	"github.com/cwrk-planet/realtime-service/internal/postgres"
	"github.com/cwrk-planet/realtime-service/internal/registry"
	"github.com/cwrk-planet/realtime-service/internal/security"
	"github.com/cwrk-planet/realtime-service/internal/service"
	grpcx "github.com/cwrk-planet/realtime-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/realtime-service/internal/transport/http"
	"github.com/cwrk-planet/realtime-service/internal/transport/ws"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

// stores собирает реализации хранилища под выбранный драйвер.
type stores struct {
	users    security.UserDirectory
	convs    service.ConversationStore
	meetings service.MeetingStore
	close    func()
}

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	base := logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	base.Info("starting realtime-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "storage", cfg.Storage.Driver)

	// trace ids для корреляции логов; экспортёр не подключён
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, base); err != nil {
		base.Error("realtime-service stopped with error", "err", err)
		_ = tp.Shutdown(context.Background())
		os.Exit(1)
	}
	_ = tp.Shutdown(context.Background())
	base.Info("stopped")
}

func run(ctx context.Context, cfg *config.Config, base *slog.Logger) error {
	// --- storage ---
	st, err := openStores(ctx, cfg, base)
	if err != nil {
		return err
	}
	defer st.close()

	// --- security ---
	verifier, err := newVerifier(cfg.Security.JWT)
	if err != nil {
		return err
	}
	auth := security.NewAuthenticator(verifier, st.users)

	// --- registries & services ---
	hub := registry.NewHub()
	presence := registry.NewPresence()
	typing := registry.NewTyping()
	live := registry.NewMeetings(cfg.Meetings.EndedRetention)

	meetingSvc := service.NewMeetingService(hub, live, st.meetings, st.convs)
	chatSvc := service.NewChatService(hub, typing, st.convs)
	sessionSvc := service.NewSessionService(hub, presence, typing, meetingSvc)

	// --- WS ---
	wsServer := ws.NewServer(auth, sessionSvc, chatSvc, meetingSvc, ws.Options{
		PingPeriod:      cfg.WS.PingPeriod,
		WriteWait:       cfg.WS.WriteWait,
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
		SendBuffer:      cfg.WS.SendBuffer,
		InboundBuffer:   cfg.WS.InboundBuffer,
		EventsPerSecond: cfg.WS.EventsPerSecond,
		EventBurst:      cfg.WS.EventBurst,
		AllowedOrigins:  cfg.WS.AllowedOrigins,
	})

	// --- HTTP ---
	handler := httpx.NewHandler(sessionSvc, meetingSvc, cfg.WebRTC.PeerICEServers())
	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpx.NewRouter(httpx.RouterDeps{
			Handler:        handler,
			Auth:           auth,
			WS:             wsServer.HandleWS,
			Logger:         base,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		}),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// --- gRPC ---
	grpcSrv := grpcx.NewServer(base)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	// --- run & graceful shutdown ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		base.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		base.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		grpcSrv.Shutdown(sctx)
		if err := httpSrv.Shutdown(sctx); err != nil {
			base.Warn("http shutdown", "err", err)
		}
		if err := wsServer.Shutdown(sctx); err != nil {
			base.Warn("ws shutdown", "err", err)
		}
		return nil
	})

	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		m := memstore.New()
		if cfg.Storage.Seed != "" {
			if err := m.LoadSeedFile(cfg.Storage.Seed); err != nil {
				return nil, fmt.Errorf("memory seed: %w", err)
			}
		}
		log.Warn("using in-memory storage, data is lost on restart")
		return &stores{users: m, convs: m, meetings: m, close: func() {}}, nil

	default:
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:               cfg.Postgres.DSN,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
			ApplicationName:   cfg.Postgres.ApplicationName,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &stores{
			users:    postgres.NewUserRepository(pool),
			convs:    postgres.NewConversationRepository(pool),
			meetings: postgres.NewMeetingRepository(pool),
			close:    pool.Close,
		}, nil
	}
}

func newVerifier(j config.JWT) (*security.TokenVerifier, error) {
	switch j.Alg {
	case "RS256":
		pub, err := security.LoadRSAPublicKeyFromPEM(j.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("jwt public key: %w", err)
		}
		return security.NewRS256Verifier(pub, j.Issuer, j.Audience, j.ClockSkew), nil
	default:
		return security.NewHS256Verifier([]byte(j.Secret), j.Issuer, j.Audience, j.ClockSkew), nil
	}
}
