package config

import (
	"time"
)

// Validation tags described here: https://pkg.go.dev/github.com/go-playground/validator/v10
type Config struct {
	Agent struct {
		SellerAddress string `env:"AGENT_SELLER_ADDRESS" flag:"agent-seller-address" validate:"omitempty,eth_addr" desc:"local seller identity registered with the orchestrator"`
		BuyerAddress  string `env:"AGENT_BUYER_ADDRESS"  flag:"agent-buyer-address"  validate:"omitempty,eth_addr" desc:"local buyer identity registered with the orchestrator"`
	}
	Environment string `env:"ENVIRONMENT" flag:"environment"`
	Marketplace struct {
		BuyerDeposit                 int64         `env:"MARKET_BUYER_DEPOSIT"            flag:"market-buyer-deposit"            validate:"omitempty,gt=0"     desc:"default deposit the buyer escrows when signing a match"`
		Timeout                      time.Duration `env:"MARKET_TIMEOUT"                  flag:"market-timeout"                  validate:"omitempty" desc:"default deal timeout stamped onto match proposals"`
		TimeoutDeposit               int64         `env:"MARKET_TIMEOUT_DEPOSIT"          flag:"market-timeout-deposit"          validate:"omitempty,gt=0"     desc:"default deposit the seller escrows against missing the timeout"`
		CheatingCollateralMultiplier int64         `env:"MARKET_CHEATING_COLLATERAL_MULT" flag:"market-cheating-collateral-mult" validate:"omitempty,gt=0"     desc:"per-instruction collateral the seller posts with a result"`
		VerificationMethod           string        `env:"MARKET_VERIFICATION_METHOD"      flag:"market-verification-method"      validate:"omitempty,oneof=none random consortium"`
		RoundInterval                time.Duration `env:"MARKET_ROUND_INTERVAL"           flag:"market-round-interval"           validate:"omitempty" desc:"interval between settlement rounds"`
	}
	Negotiation struct {
		MaxRounds           int           `env:"NEGOTIATION_MAX_ROUNDS"            flag:"negotiation-max-rounds"            validate:"omitempty,gt=0"     desc:"counter-offer budget per negotiation before terminal reject"`
		Policy              string        `env:"NEGOTIATION_POLICY"                flag:"negotiation-policy"                validate:"omitempty,oneof=threshold kalman timedecay titfortat"`
		Deadline            time.Duration `env:"NEGOTIATION_DEADLINE"              flag:"negotiation-deadline"              validate:"omitempty" desc:"wall-clock budget of one negotiation before it lapses"`
		Concession          float64       `env:"NEGOTIATION_CONCESSION"            flag:"negotiation-concession"            validate:"omitempty,gt=0,lt=1"`
		KalmanVariance      float64       `env:"NEGOTIATION_KALMAN_VARIANCE"       flag:"negotiation-kalman-variance"       validate:"omitempty,gt=0"     desc:"initial estimate variance of the kalman policy"`
		MeasurementVariance float64       `env:"NEGOTIATION_MEASUREMENT_VARIANCE"  flag:"negotiation-measurement-variance"  validate:"omitempty,gt=0"`
		PriceFloor          int64         `env:"NEGOTIATION_PRICE_FLOOR"           flag:"negotiation-price-floor"           validate:"omitempty,gt=0"     desc:"lower price bound of the bounded policies"`
		PriceCeiling        int64         `env:"NEGOTIATION_PRICE_CEILING"         flag:"negotiation-price-ceiling"         validate:"omitempty,gt=0"     desc:"upper price bound of the bounded policies"`
		Schedule            string        `env:"NEGOTIATION_SCHEDULE"              flag:"negotiation-schedule"              validate:"omitempty,oneof=poly exp" desc:"concession curve shape of the time-decay policy"`
		DecayBeta           float64       `env:"NEGOTIATION_DECAY_BETA"            flag:"negotiation-decay-beta"            validate:"omitempty,gt=0"`
		DecayKappa          float64       `env:"NEGOTIATION_DECAY_KAPPA"           flag:"negotiation-decay-kappa"           validate:"omitempty,gte=0,lte=1"`
		ThresholdAccept     float64       `env:"NEGOTIATION_THRESHOLD_ACCEPT"      flag:"negotiation-threshold-accept"      desc:"utility above which the threshold policy accepts"`
		ThresholdReject     float64       `env:"NEGOTIATION_THRESHOLD_REJECT"      flag:"negotiation-threshold-reject"      desc:"utility below which the threshold policy rejects"`
	}
	Log struct {
		Color         bool   `env:"LOG_COLOR"          flag:"log-color"`
		FolderPath    string `env:"LOG_FOLDER_PATH"    flag:"log-folder-path"    validate:"omitempty,dirpath" desc:"enables file logging and sets the folder path"`
		IsProd        bool   `env:"LOG_IS_PROD"        flag:"log-is-prod"        validate:""                  desc:"affects the format of the log output"`
		JSON          bool   `env:"LOG_JSON"           flag:"log-json"`
		LevelApp      string `env:"LOG_LEVEL_APP"      flag:"log-level-app"      validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelLedger   string `env:"LOG_LEVEL_LEDGER"   flag:"log-level-ledger"   validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelMatcher  string `env:"LOG_LEVEL_MATCHER"  flag:"log-level-matcher"  validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelAgent    string `env:"LOG_LEVEL_AGENT"    flag:"log-level-agent"    validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelMediator string `env:"LOG_LEVEL_MEDIATOR" flag:"log-level-mediator" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	}
	Web struct {
		Address   string `env:"WEB_ADDRESS"    flag:"web-address"    validate:"omitempty,hostname_port" desc:"http server address host:port"`
		PublicUrl string `env:"WEB_PUBLIC_URL" flag:"web-public-url" validate:"omitempty,url"          desc:"public url of the node, falls back to web-address if empty"`
	}
}

func (cfg *Config) SetDefaults() {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Marketplace

	if cfg.Marketplace.BuyerDeposit == 0 {
		cfg.Marketplace.BuyerDeposit = 5
	}
	if cfg.Marketplace.Timeout == 0 {
		cfg.Marketplace.Timeout = 10 * time.Second
	}
	if cfg.Marketplace.TimeoutDeposit == 0 {
		cfg.Marketplace.TimeoutDeposit = 3
	}
	if cfg.Marketplace.CheatingCollateralMultiplier == 0 {
		cfg.Marketplace.CheatingCollateralMultiplier = 50
	}
	if cfg.Marketplace.VerificationMethod == "" {
		cfg.Marketplace.VerificationMethod = "random"
	}
	if cfg.Marketplace.RoundInterval == 0 {
		cfg.Marketplace.RoundInterval = 5 * time.Second
	}

	// Negotiation

	if cfg.Negotiation.MaxRounds == 0 {
		cfg.Negotiation.MaxRounds = 5
	}
	if cfg.Negotiation.Policy == "" {
		cfg.Negotiation.Policy = "threshold"
	}
	if cfg.Negotiation.Deadline == 0 {
		cfg.Negotiation.Deadline = 30 * time.Second
	}
	if cfg.Negotiation.Concession == 0 {
		cfg.Negotiation.Concession = 0.05
	}
	if cfg.Negotiation.KalmanVariance == 0 {
		cfg.Negotiation.KalmanVariance = 10
	}
	if cfg.Negotiation.MeasurementVariance == 0 {
		cfg.Negotiation.MeasurementVariance = 5
	}
	if cfg.Negotiation.PriceFloor == 0 {
		cfg.Negotiation.PriceFloor = 1
	}
	if cfg.Negotiation.PriceCeiling == 0 {
		cfg.Negotiation.PriceCeiling = 100
	}
	if cfg.Negotiation.Schedule == "" {
		cfg.Negotiation.Schedule = "poly"
	}
	if cfg.Negotiation.DecayBeta == 0 {
		cfg.Negotiation.DecayBeta = 1
	}
	if cfg.Negotiation.DecayKappa == 0 {
		cfg.Negotiation.DecayKappa = 0.1
	}
	if cfg.Negotiation.ThresholdReject == 0 {
		cfg.Negotiation.ThresholdReject = -1000
	}

	// Log

	if cfg.Log.LevelApp == "" {
		cfg.Log.LevelApp = "debug"
	}
	if cfg.Log.LevelLedger == "" {
		cfg.Log.LevelLedger = "debug"
	}
	if cfg.Log.LevelMatcher == "" {
		cfg.Log.LevelMatcher = "info"
	}
	if cfg.Log.LevelAgent == "" {
		cfg.Log.LevelAgent = "info"
	}
	if cfg.Log.LevelMediator == "" {
		cfg.Log.LevelMediator = "info"
	}

	// Web

	if cfg.Web.Address == "" {
		cfg.Web.Address = "0.0.0.0:8080"
	}
	if cfg.Web.PublicUrl == "" {
		cfg.Web.PublicUrl = "http://localhost:8080"
	}
}

// GetSanitized returns a copy of the config with sensitive data removed
// explicitly adding each field here to avoid accidentally leaking sensitive data
func (cfg *Config) GetSanitized() interface{} {
	publicCfg := Config{}

	publicCfg.Agent.SellerAddress = cfg.Agent.SellerAddress
	publicCfg.Agent.BuyerAddress = cfg.Agent.BuyerAddress

	publicCfg.Environment = cfg.Environment

	publicCfg.Marketplace.BuyerDeposit = cfg.Marketplace.BuyerDeposit
	publicCfg.Marketplace.Timeout = cfg.Marketplace.Timeout
	publicCfg.Marketplace.TimeoutDeposit = cfg.Marketplace.TimeoutDeposit
	publicCfg.Marketplace.CheatingCollateralMultiplier = cfg.Marketplace.CheatingCollateralMultiplier
	publicCfg.Marketplace.VerificationMethod = cfg.Marketplace.VerificationMethod
	publicCfg.Marketplace.RoundInterval = cfg.Marketplace.RoundInterval

	publicCfg.Negotiation.MaxRounds = cfg.Negotiation.MaxRounds
	publicCfg.Negotiation.Policy = cfg.Negotiation.Policy
	publicCfg.Negotiation.Deadline = cfg.Negotiation.Deadline
	publicCfg.Negotiation.Concession = cfg.Negotiation.Concession
	publicCfg.Negotiation.KalmanVariance = cfg.Negotiation.KalmanVariance
	publicCfg.Negotiation.MeasurementVariance = cfg.Negotiation.MeasurementVariance
	publicCfg.Negotiation.PriceFloor = cfg.Negotiation.PriceFloor
	publicCfg.Negotiation.PriceCeiling = cfg.Negotiation.PriceCeiling
	publicCfg.Negotiation.Schedule = cfg.Negotiation.Schedule
	publicCfg.Negotiation.DecayBeta = cfg.Negotiation.DecayBeta
	publicCfg.Negotiation.DecayKappa = cfg.Negotiation.DecayKappa
	publicCfg.Negotiation.ThresholdAccept = cfg.Negotiation.ThresholdAccept
	publicCfg.Negotiation.ThresholdReject = cfg.Negotiation.ThresholdReject

	publicCfg.Log.Color = cfg.Log.Color
	publicCfg.Log.FolderPath = cfg.Log.FolderPath
	publicCfg.Log.IsProd = cfg.Log.IsProd
	publicCfg.Log.JSON = cfg.Log.JSON
	publicCfg.Log.LevelApp = cfg.Log.LevelApp
	publicCfg.Log.LevelLedger = cfg.Log.LevelLedger
	publicCfg.Log.LevelMatcher = cfg.Log.LevelMatcher
	publicCfg.Log.LevelAgent = cfg.Log.LevelAgent
	publicCfg.Log.LevelMediator = cfg.Log.LevelMediator

	publicCfg.Web.Address = cfg.Web.Address
	publicCfg.Web.PublicUrl = cfg.Web.PublicUrl

	return publicCfg
}
