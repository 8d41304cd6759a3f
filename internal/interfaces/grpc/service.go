package grpcinterface

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	spentbookv1 "github.com/tdex-network/spentbook/api-spec/spentbook/v1"
	"github.com/tdex-network/spentbook/internal/core/application"
	interfaces "github.com/tdex-network/spentbook/internal/interfaces"
	grpchandler "github.com/tdex-network/spentbook/internal/interfaces/grpc/handler"
	"github.com/tdex-network/spentbook/internal/interfaces/grpc/interceptor"
	"google.golang.org/grpc"
)

const metricsPath = "/metrics"

type ServiceOpts struct {
	Port int
	// MetricsPort is where prometheus metrics are served, 0 disables them.
	MetricsPort          int
	MaxRequestsPerSecond int
	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	SpentbookSvc application.SpentbookService
}

func (o ServiceOpts) validate() error {
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	if o.MetricsPort < 0 || o.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port %d", o.MetricsPort)
	}
	if o.MetricsPort == o.Port {
		return fmt.Errorf("metrics port must differ from port %d", o.Port)
	}
	if o.MaxRequestsPerSecond < 0 {
		return fmt.Errorf("max requests per second must not be negative")
	}
	if o.SpentbookSvc == nil {
		return fmt.Errorf("spentbook app service must not be null")
	}
	return nil
}

func (o ServiceOpts) address() string {
	return fmt.Sprintf(":%d", o.Port)
}

func (o ServiceOpts) metricsAddress() string {
	return fmt.Sprintf(":%d", o.MetricsPort)
}

type service struct {
	opts          ServiceOpts
	grpcServer    *grpc.Server
	metricsServer *http.Server
}

// NewService returns the gRPC interface of a spentbook node.
func NewService(opts ServiceOpts) (interfaces.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid opts: %s", err)
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &service{opts: opts}, nil
}

func (s *service) Start() error {
	lis, err := net.Listen("tcp", s.opts.address())
	if err != nil {
		return err
	}

	grpcServer := NewServer(s.opts.SpentbookSvc, s.opts.MaxRequestsPerSecond)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Error("spentbook interface stopped")
		}
	}()
	s.grpcServer = grpcServer
	log.Infof("spentbook interface listening on %s", s.opts.address())

	if s.opts.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle(metricsPath, promhttp.HandlerFor(
			s.opts.Gatherer, promhttp.HandlerOpts{},
		))
		s.metricsServer = &http.Server{
			Addr:              s.opts.metricsAddress(),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics endpoint stopped")
			}
		}()
		log.Infof("metrics served on %s%s", s.opts.metricsAddress(), metricsPath)
	}

	return nil
}

func (s *service) Stop() {
	if s.metricsServer != nil {
		s.metricsServer.Close()
		log.Debug("disabled metrics endpoint")
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
		log.Debug("disabled spentbook interface")
	}
}

// NewServer returns a gRPC server with the spentbook service registered.
func NewServer(
	spentbookSvc application.SpentbookService, maxRequestsPerSecond int,
) *grpc.Server {
	server := grpc.NewServer(interceptor.UnaryInterceptor(maxRequestsPerSecond))
	spentbookv1.RegisterSpentbookServer(
		server, grpchandler.NewSpentbookHandler(spentbookSvc),
	)
	return server
}
