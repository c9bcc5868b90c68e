package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/twmb/franz-go/pkg/kgo"

	"verigate/internal/income/lock"
	"verigate/internal/income/ports"
	"verigate/internal/income/service"
	"verigate/internal/income/store"
	"verigate/internal/platform/config"
	"verigate/internal/platform/kafka"
	"verigate/internal/platform/postgres"
	"verigate/internal/platform/redis"
	"verigate/pkg/platform/audit/publisher"
	auditkafka "verigate/pkg/platform/audit/store/kafka"
	"verigate/pkg/platform/httputil"
)

// auditBuffer is the async audit queue depth when Kafka is configured.
const auditBuffer = 1024

// infra holds the backing services picked from configuration. Each backend
// falls back to an in-process implementation when it is not configured.
type infra struct {
	logger *slog.Logger
	db     *sql.DB
	redis  *redis.Client
	kafka  *kgo.Client

	stores service.Stores
	locker ports.SubjectLocker
	audit  *publisher.Publisher
}

func buildInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{logger: log}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	in.db = db
	if db != nil {
		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			in.Close()
			return nil, err
		}
		in.stores = service.Stores{Cases: pg, Archives: pg, Identities: pg, Summaries: pg, History: pg}
		log.Info("using postgres stores")
	} else {
		mem := store.NewInMemory()
		in.stores = service.Stores{Cases: mem, Archives: mem, Identities: mem, Summaries: mem, History: mem}
		log.Warn("DATABASE_URL not set; using in-memory stores")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	in.redis = rc
	if rc != nil {
		in.locker = lock.NewRedis(rc.Client, cfg.Lock.TTL, cfg.Lock.Wait)
	} else {
		in.locker = lock.NewInMemory(cfg.Lock.Wait)
		log.Warn("REDIS_URL not set; subject lock is process-local")
	}

	kc, err := kafka.NewClient(ctx, cfg.Kafka)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	in.kafka = kc
	if kc != nil {
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.AuditTopic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			in.Close()
			return nil, err
		}
		in.audit = publisher.NewPublisher(auditkafka.New(kc, cfg.Kafka.AuditTopic),
			publisher.WithAsyncBuffer(auditBuffer),
			publisher.WithLogger(log),
		)
	} else {
		in.audit = publisher.NewPublisher(nil, publisher.WithLogger(log))
	}

	return in, nil
}

// Close drains the audit stream before closing the clients it depends on.
func (in *infra) Close() {
	if in.audit != nil {
		in.audit.Close()
	}
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.logger.Warn("close redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			in.logger.Warn("close postgres", "error", err)
		}
	}
}

type healthResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends,omitempty"`
}

// HandleHealth pings every configured backend.
func (in *infra) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{Status: "ok", Backends: map[string]string{}}
	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Backends[name] = err.Error()
			return
		}
		resp.Backends[name] = "ok"
	}
	if in.db != nil {
		check("postgres", in.db.PingContext)
	}
	if in.redis != nil {
		check("redis", in.redis.Health)
	}
	if in.kafka != nil {
		check("kafka", in.kafka.Ping)
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}
