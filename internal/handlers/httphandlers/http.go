package httphandlers

import (
	"errors"
	"math/big"
	"net/http/pprof"
	"time"

	"github.com/coophive/marketnode/internal/config"
	"github.com/coophive/marketnode/internal/interfaces"
	"github.com/coophive/marketnode/internal/marketplace/ledger"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/coophive/marketnode/internal/marketplace/offerstore"
	"github.com/coophive/marketnode/internal/marketplace/orchestrator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type HTTPHandler struct {
	store        *offerstore.Store
	ledger       *ledger.Ledger
	orchestrator *orchestrator.Orchestrator
	cfg          *config.Config
	log          interfaces.ILogger
}

func NewHTTPHandler(store *offerstore.Store, ldg *ledger.Ledger, orch *orchestrator.Orchestrator, cfg *config.Config, log interfaces.ILogger) *gin.Engine {
	handl := &HTTPHandler{
		store:        store,
		ledger:       ldg,
		orchestrator: orch,
		cfg:          cfg,
		log:          log,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthcheck", handl.HealthCheck)
	r.GET("/config", handl.GetConfig)
	r.GET("/resource-offers", handl.GetResourceOffers)
	r.GET("/job-offers", handl.GetJobOffers)
	r.GET("/balances/:address", handl.GetBalance)
	r.GET("/deals", handl.GetDeals)
	r.GET("/deals/:ID", handl.GetDeal)
	r.GET("/events", handl.GetEvents)

	r.POST("/resource-offers", handl.PublishResourceOffer)
	r.POST("/job-offers", handl.PublishJobOffer)
	r.POST("/fund", handl.Fund)
	r.POST("/results", handl.PostResult)
	r.POST("/payments", handl.PostPayment)
	r.POST("/rounds", handl.RunRound)

	r.DELETE("/offers/:ID", handl.RetireOffer)

	r.Any("/debug/pprof/*action", gin.WrapF(pprof.Index))

	err := r.SetTrustedProxies(nil)
	if err != nil {
		panic(err)
	}

	return r
}

func (h *HTTPHandler) HealthCheck(ctx *gin.Context) {
	ctx.JSON(200, gin.H{
		"status":  "healthy",
		"version": config.BuildVersion,
	})
}

func (h *HTTPHandler) GetConfig(ctx *gin.Context) {
	ctx.JSON(200, h.cfg.GetSanitized())
}

func (h *HTTPHandler) PublishResourceOffer(ctx *gin.Context) {
	var offer market.ResourceOffer
	if err := market.DecodeStrict(ctx.Request.Body, &offer); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	id, err := h.store.PublishResourceOffer(&offer, time.Now())
	if err != nil {
		h.abortWith(ctx, err)
		return
	}
	ctx.JSON(201, gin.H{"id": id})
}

func (h *HTTPHandler) PublishJobOffer(ctx *gin.Context) {
	var offer market.JobOffer
	if err := market.DecodeStrict(ctx.Request.Body, &offer); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	id, err := h.store.PublishJobOffer(&offer, time.Now())
	if err != nil {
		h.abortWith(ctx, err)
		return
	}
	ctx.JSON(201, gin.H{"id": id})
}

func (h *HTTPHandler) GetResourceOffers(ctx *gin.Context) {
	domain := ctx.DefaultQuery("domain", market.DefaultDomain)
	ctx.JSON(200, h.store.ResourceOffers(domain))
}

func (h *HTTPHandler) GetJobOffers(ctx *gin.Context) {
	domain := ctx.DefaultQuery("domain", market.DefaultDomain)
	ctx.JSON(200, h.store.JobOffers(domain))
}

func (h *HTTPHandler) RetireOffer(ctx *gin.Context) {
	id := common.HexToHash(ctx.Param("ID"))
	if !h.store.RetireOffer(id) {
		ctx.JSON(404, gin.H{"error": "offer not found"})
		return
	}
	ctx.JSON(200, gin.H{"status": "ok"})
}

type fundRequest struct {
	Sender common.Address `json:"sender"`
	Value  *big.Int       `json:"value"`
}

func (h *HTTPHandler) Fund(ctx *gin.Context) {
	var req fundRequest
	if err := market.DecodeStrict(ctx.Request.Body, &req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if req.Value == nil {
		ctx.JSON(400, gin.H{"error": "value is required"})
		return
	}
	if err := h.ledger.Fund(market.NewTx(req.Sender, req.Value)); err != nil {
		h.abortWith(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"balance": h.ledger.Balance(req.Sender)})
}

func (h *HTTPHandler) GetBalance(ctx *gin.Context) {
	addr := common.HexToAddress(ctx.Param("address"))
	ctx.JSON(200, gin.H{
		"address": addr,
		"balance": h.ledger.Balance(addr),
	})
}

func (h *HTTPHandler) GetDeals(ctx *gin.Context) {
	ctx.JSON(200, h.ledger.Deals())
}

func (h *HTTPHandler) GetDeal(ctx *gin.Context) {
	id := common.HexToHash(ctx.Param("ID"))
	deal, ok := h.ledger.GetDeal(id)
	if !ok {
		ctx.JSON(404, gin.H{"error": "deal not found"})
		return
	}
	ctx.JSON(200, deal)
}

type resultRequest struct {
	DealID           common.Hash    `json:"dealId"`
	InstructionCount int64          `json:"instructionCount"`
	Sender           common.Address `json:"sender"`
	Value            *big.Int       `json:"value"`
}

func (h *HTTPHandler) PostResult(ctx *gin.Context) {
	var req resultRequest
	if err := market.DecodeStrict(ctx.Request.Body, &req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if req.Value == nil {
		ctx.JSON(400, gin.H{"error": "value is required"})
		return
	}

	result, err := market.NewResult(req.DealID, req.InstructionCount)
	if err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if err := h.ledger.PostResult(result, market.NewTx(req.Sender, req.Value)); err != nil {
		h.abortWith(ctx, err)
		return
	}
	ctx.JSON(202, gin.H{"id": result.ID})
}

type paymentRequest struct {
	ResultID common.Hash    `json:"resultId"`
	Sender   common.Address `json:"sender"`
	Value    *big.Int       `json:"value"`
}

func (h *HTTPHandler) PostPayment(ctx *gin.Context) {
	var req paymentRequest
	if err := market.DecodeStrict(ctx.Request.Body, &req); err != nil {
		ctx.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if req.Value == nil {
		ctx.JSON(400, gin.H{"error": "value is required"})
		return
	}
	if err := h.ledger.PostPayment(req.ResultID, market.NewTx(req.Sender, req.Value)); err != nil {
		h.abortWith(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"status": "ok"})
}

func (h *HTTPHandler) GetEvents(ctx *gin.Context) {
	ctx.JSON(200, h.ledger.Events())
}

// RunRound triggers one settlement round out of schedule
func (h *HTTPHandler) RunRound(ctx *gin.Context) {
	report, err := h.orchestrator.RunOnce(time.Now())
	if err != nil {
		ctx.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(200, report)
}

func (h *HTTPHandler) abortWith(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnknownMatch),
		errors.Is(err, ledger.ErrUnknownDeal),
		errors.Is(err, ledger.ErrUnknownResult):
		ctx.JSON(404, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrAlreadySigned),
		errors.Is(err, ledger.ErrMatchSettled),
		errors.Is(err, ledger.ErrResultPending),
		errors.Is(err, ledger.ErrDealCompleted):
		ctx.JSON(409, gin.H{"error": err.Error()})
	default:
		ctx.JSON(400, gin.H{"error": err.Error()})
	}
}
