package agent

import (
	"fmt"
	"sync"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/txflow/cache"
	"github.com/mohitkumar/txflow/config"
	"github.com/mohitkumar/txflow/flow"
	"github.com/mohitkumar/txflow/flows"
	"github.com/mohitkumar/txflow/invalidation"
	"github.com/mohitkumar/txflow/ledger"
	"github.com/mohitkumar/txflow/ledger/flowchain"
	"github.com/mohitkumar/txflow/ledger/simulated"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/metrics"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/persistence"
	"github.com/mohitkumar/txflow/persistence/memory"
	"github.com/mohitkumar/txflow/persistence/redis"
	"github.com/mohitkumar/txflow/rest"
	"github.com/mohitkumar/txflow/restapi"
	"github.com/mohitkumar/txflow/service"
	"github.com/mohitkumar/txflow/submitter"
	"github.com/mohitkumar/txflow/tracker"
	"github.com/mohitkumar/txflow/util"
	"go.uber.org/zap"
)

const (
	reconcileSweepInterval = 30 * time.Second
	metricsExportPeriod    = time.Minute
)

// LedgerBackend is a ledger that can also answer receipt queries.
type LedgerBackend interface {
	ledger.Ledger
	restapi.ReceiptSource
}

type Agent struct {
	Config       config.Config
	ledger       LedgerBackend
	journal      persistence.OperationJournal
	flowDao      persistence.FlowDao
	cacheStore   cache.Cache
	submitter    *submitter.Submitter
	tracker      *tracker.Tracker
	contract     *invalidation.Contract
	reconciler   *flow.Reconciler
	backend      *restapi.Client
	catalog      *flows.Catalog
	flowService  *service.FlowService
	httpServer   *rest.Server
	closers      []func() error
	shutdown     bool
	shutdowns    chan struct{}
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupLogger,
		a.setupMetrics,
		a.setupLedger,
		a.setupStorage,
		a.setupCache,
		a.setupOperations,
		a.setupReconciler,
		a.setupBackend,
		a.setupFlowService,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupLogger() error {
	l, err := a.Config.Log.NewZapLogger()
	if err != nil {
		return err
	}
	logger.SetLogger(l)
	return nil
}

func (a *Agent) setupMetrics() error {
	if err := metrics.Register(); err != nil {
		return err
	}
	metrics.StartLogExporter(metricsExportPeriod)
	return nil
}

func (a *Agent) setupLedger() error {
	switch a.Config.LedgerType {
	case config.LEDGER_TYPE_FLOW:
		client, err := flowchain.NewAccessClient(a.Config.Ledger)
		if err != nil {
			return err
		}
		l, err := flowchain.New(client, a.Config.Ledger)
		if err != nil {
			return err
		}
		a.ledger = l
		a.closers = append(a.closers, client.Close)
	case config.LEDGER_TYPE_SIMULATED, "":
		a.ledger = simulated.New().Program(string(model.KIND_REVEAL_PACK), simulated.SuccessScript(model.Event{
			Type:    "A.0000000000000001.Gacha.ItemRevealed",
			Payload: map[string]any{"itemId": 1, "name": "Sample Item", "rarity": "common"},
		}))
	default:
		return fmt.Errorf("unknown ledger type %q", a.Config.LedgerType)
	}
	logger.Info("ledger configured", zap.String("type", string(a.Config.LedgerType)))
	return nil
}

func (a *Agent) redisConfig() redis.Config {
	return redis.Config{
		Addrs:     a.Config.RedisConfig.Addrs,
		Namespace: a.Config.RedisConfig.Namespace,
	}
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		journal := redis.NewRedisJournalDao(a.redisConfig(), util.NewJsonEncoderDecoder[model.OperationRecord]())
		flowDao := redis.NewRedisFlowDao(a.redisConfig(), util.NewJsonEncoderDecoder[model.FlowSnapshot]())
		a.journal = journal
		a.flowDao = flowDao
		a.closers = append(a.closers, journal.Close, flowDao.Close)
	case config.STORAGE_TYPE_INMEM, "":
		a.journal = memory.NewJournal()
		a.flowDao = memory.NewFlowDao()
	default:
		return fmt.Errorf("unknown storage type %q", a.Config.StorageType)
	}
	return nil
}

func (a *Agent) setupCache() error {
	switch a.Config.CacheType {
	case config.CACHE_TYPE_REDIS:
		client := rd.NewUniversalClient(&rd.UniversalOptions{
			Addrs: a.Config.RedisConfig.Addrs,
		})
		a.cacheStore = cache.NewRedisStore(client, a.Config.RedisConfig.Namespace, a.Config.Backend.CacheTTL)
		a.closers = append(a.closers, client.Close)
	case config.CACHE_TYPE_LOCAL, "":
		a.cacheStore = cache.NewLocalStore(a.Config.Backend.CacheTTL)
	default:
		return fmt.Errorf("unknown cache type %q", a.Config.CacheType)
	}
	return nil
}

func (a *Agent) setupOperations() error {
	a.submitter = submitter.New(a.ledger, a.journal, a.Config.RateLimit)
	a.tracker = tracker.New(a.ledger, a.Config.Tracker)
	a.contract = invalidation.NewContract(a.cacheStore, nil)
	return nil
}

func (a *Agent) setupReconciler() error {
	if !a.Config.ReconcileAbandoned {
		return nil
	}
	a.reconciler = flow.NewReconciler(a.tracker, a.journal, a.contract, reconcileSweepInterval, &a.wg)
	a.reconciler.Start()
	return nil
}

func (a *Agent) setupBackend() error {
	a.backend = restapi.New(a.Config.Backend, a.cacheStore, a.ledger)
	return nil
}

func (a *Agent) setupFlowService() error {
	svc := flow.Services{
		Submitter: a.submitter,
		Tracker:   a.tracker,
		Outcomes:  a.contract,
		Journal:   a.journal,
	}
	if a.reconciler != nil {
		svc.Abandoned = a.reconciler
	}
	a.catalog = flows.NewCatalog(svc, a.backend, flows.WithOnComplete(func(snap model.FlowSnapshot) {
		logger.Info("flow completed", zap.String("id", snap.ID), zap.String("name", snap.Name))
	}))
	a.flowService = service.NewFlowService(a.catalog, a.flowDao, &a.wg)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.flowService, a.catalog, a.backend)
	if err != nil {
		return err
	}
	return nil
}

// FlowService is exposed for commands that drive flows in process.
func (a *Agent) FlowService() *service.FlowService {
	return a.flowService
}

func (a *Agent) Catalog() *flows.Catalog {
	return a.catalog
}

func (a *Agent) Tracker() *tracker.Tracker {
	return a.tracker
}

func (a *Agent) Start() error {
	go func() {
		err := a.httpServer.Start()
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
			_ = a.Shutdown()
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		a.flowService.Stop,
		func() error {
			if a.reconciler != nil {
				a.reconciler.Stop()
			}
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			logger.Error("error closing resource", zap.Error(err))
		}
	}
	_ = logger.Sync()
	return nil
}
