package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coophive/marketnode/internal/config"
	"github.com/coophive/marketnode/internal/handlers/httphandlers"
	"github.com/coophive/marketnode/internal/lib"
	"github.com/coophive/marketnode/internal/marketplace/agent"
	"github.com/coophive/marketnode/internal/marketplace/ledger"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/coophive/marketnode/internal/marketplace/matcher"
	"github.com/coophive/marketnode/internal/marketplace/mediator"
	"github.com/coophive/marketnode/internal/marketplace/negotiation"
	"github.com/coophive/marketnode/internal/marketplace/offerstore"
	"github.com/coophive/marketnode/internal/marketplace/orchestrator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	err := config.LoadConfig(&cfg, &os.Args)
	if err != nil {
		panic(err)
	}
	cfg.SetDefaults()

	log, err := lib.NewLogger(cfg.Log.LevelApp, cfg.Log.Color, cfg.Log.IsProd, cfg.Log.JSON, cfg.Log.FolderPath)
	if err != nil {
		panic(err)
	}
	ledgerLog, err := lib.NewLogger(cfg.Log.LevelLedger, cfg.Log.Color, cfg.Log.IsProd, cfg.Log.JSON, cfg.Log.FolderPath)
	if err != nil {
		panic(err)
	}
	matcherLog, err := lib.NewLogger(cfg.Log.LevelMatcher, cfg.Log.Color, cfg.Log.IsProd, cfg.Log.JSON, cfg.Log.FolderPath)
	if err != nil {
		panic(err)
	}
	agentLog, err := lib.NewLogger(cfg.Log.LevelAgent, cfg.Log.Color, cfg.Log.IsProd, cfg.Log.JSON, cfg.Log.FolderPath)
	if err != nil {
		panic(err)
	}
	mediatorLog, err := lib.NewLogger(cfg.Log.LevelMediator, cfg.Log.Color, cfg.Log.IsProd, cfg.Log.JSON, cfg.Log.FolderPath)
	if err != nil {
		panic(err)
	}

	defer func() {
		_ = log.Sync()
	}()

	ctx, cancel := context.WithCancel(context.Background())

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-shutdownChan
		log.Warnf("Received signal: %s", s)
		cancel()

		s = <-shutdownChan
		log.Warnf("Received signal: %s. Forcing exit...", s)
		os.Exit(1)
	}()

	verification, err := market.ParseVerificationMethod(cfg.Marketplace.VerificationMethod)
	if err != nil {
		panic(err)
	}

	store := offerstore.NewStore(log.Named("STORE"))
	med := mediator.NewMediator(mediator.AlwaysCorrect{}, mediatorLog.Named("MEDIATOR"))
	ldg := ledger.NewLedger(med, ledgerLog.Named("LEDGER"))

	mtchr := matcher.NewMatcher(matcher.Defaults{
		BuyerDeposit:                 big.NewInt(cfg.Marketplace.BuyerDeposit),
		Timeout:                      cfg.Marketplace.Timeout,
		TimeoutDeposit:               big.NewInt(cfg.Marketplace.TimeoutDeposit),
		CheatingCollateralMultiplier: big.NewInt(cfg.Marketplace.CheatingCollateralMultiplier),
		VerificationMethod:           verification,
	}, matcherLog.Named("MATCHER"))

	orch := orchestrator.NewOrchestrator(store, mtchr, ldg, cfg.Marketplace.RoundInterval, log.Named("ORCHESTRATOR"))

	if cfg.Agent.SellerAddress != "" {
		addr := common.HexToAddress(cfg.Agent.SellerAddress)
		orch.RegisterAgent(agent.NewAgent(addr, market.RoleSeller, policyFactory(&cfg, market.RoleSeller), ldg, cfg.Negotiation.MaxRounds, agentLog.Named("SELLER")))
		log.Infof("registered seller agent %s", addr)
	}
	if cfg.Agent.BuyerAddress != "" {
		addr := common.HexToAddress(cfg.Agent.BuyerAddress)
		orch.RegisterAgent(agent.NewAgent(addr, market.RoleBuyer, policyFactory(&cfg, market.RoleBuyer), ldg, cfg.Negotiation.MaxRounds, agentLog.Named("BUYER")))
		log.Infof("registered buyer agent %s", addr)
	}

	r := httphandlers.NewHTTPHandler(store, ldg, orch, &cfg, log.Named("HTTP"))
	go func() {
		addr := cfg.Web.Address
		log.Infof("http server is listening: %s", addr)

		err := r.Run(addr)
		if err != nil {
			panic(err)
		}
	}()

	orchTask := lib.NewTask(orch, "orchestrator")
	orchTask.Start(ctx)

	<-orchTask.Done()
	log.Infof("App exited due to %s", orchTask.Err())
}

// policyFactory builds a fresh per-negotiation policy from the configured
// strategy. Fresh instances keep estimates and timers session-local.
func policyFactory(cfg *config.Config, role market.Role) agent.PolicyFactory {
	n := cfg.Negotiation
	floor := big.NewInt(n.PriceFloor)
	ceil := big.NewInt(n.PriceCeiling)

	switch n.Policy {
	case "kalman":
		return func() negotiation.Policy {
			initial := float64(n.PriceFloor+n.PriceCeiling) / 2
			return negotiation.NewKalmanPolicy(initial, n.KalmanVariance, n.MeasurementVariance)
		}
	case "timedecay":
		schedule, _ := negotiation.ParseSchedule(n.Schedule)
		return func() negotiation.Policy {
			return negotiation.NewTimeDecayPolicy(time.Now(), n.Deadline, n.DecayBeta, n.DecayKappa, floor, ceil, schedule)
		}
	case "titfortat":
		return func() negotiation.Policy {
			return negotiation.NewTitForTatPolicy(1, floor, ceil)
		}
	default:
		weights := negotiation.SellerWeights()
		if role == market.RoleBuyer {
			weights = negotiation.BuyerWeights()
		}
		return func() negotiation.Policy {
			return negotiation.NewThresholdPolicy(weights, n.ThresholdAccept, n.ThresholdReject, n.Concession)
		}
	}
}
