// Package config loads the harness configuration from a yaml file or CLI
// flags. Credentials never live in the file: they come from the environment,
// optionally seeded from a .env file.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	defaultMakerFee  = "0.001"
	defaultTakerFee  = "0.002"
	defaultDataDelay = 6 * time.Second
	defaultDust      = "0.0000001"
)

// Credentials is one account's API key pair, read from the environment.
type Credentials struct {
	Key    string
	Secret string
}

type Config struct {
	WSURL   string
	RESTURL string

	// Maker rests liquidity, Taker crosses it. Two distinct accounts so
	// the harness can observe both sides of every execution.
	Maker Credentials
	Taker Credentials

	// Symbols to subscribe to. The first one is the primary pair the
	// scenarios trade; VirtualPair, when set, is a derived pair whose
	// book must replicate the primary one.
	Symbols     []string
	PrimaryPair string
	VirtualPair string

	Amount      decimal.Decimal
	InitialMid  decimal.Decimal
	InitialLast decimal.Decimal

	MakerFee decimal.Decimal
	TakerFee decimal.Decimal

	// DataDelay is the minimum observation window between a command and
	// the assertions that depend on its streamed effects.
	DataDelay time.Duration

	// Dust maps currency to the per-currency tolerance used when matching
	// wallet deltas.
	Dust map[string]decimal.Decimal

	ContinueOnFailure bool
	FindingsDir       string
}

type ConfigTmp struct {
	WSURL   string `yaml:"ws_url"`
	RESTURL string `yaml:"rest_url"`

	Symbols     []string `yaml:"symbols"`
	PrimaryPair string   `yaml:"primary_pair"`
	VirtualPair string   `yaml:"virtual_pair,omitempty"`

	Amount      string `yaml:"amount"`
	InitialMid  string `yaml:"initial_mid"`
	InitialLast string `yaml:"initial_last"`

	MakerFee string `yaml:"maker_fee,omitempty"`
	TakerFee string `yaml:"taker_fee,omitempty"`

	DataDelay time.Duration     `yaml:"data_delay,omitempty"`
	Dust      map[string]string `yaml:"dust,omitempty"`

	ContinueOnFailure bool   `yaml:"continue_on_failure,omitempty"`
	FindingsDir       string `yaml:"findings_dir,omitempty"`
}

// Get parses flags and loads the configuration. A -config path wins over
// individual flags.
func Get() (*Config, error) {
	path := flag.String("config", "", "path to yaml config")
	wsURL := flag.String("ws", "wss://api.example.com/ws/2", "websocket endpoint")
	restURL := flag.String("rest", "https://api.example.com", "rest endpoint")
	symbol := flag.String("symbol", "tBTCUSD", "primary trading symbol, example: tBTCUSD")
	virtual := flag.String("virtual", "", "virtual pair symbol replicated from the primary one")
	amount := flag.String("amount", "0.01", "order amount in base currency")
	initialMid := flag.String("initialmid", "1000", "mid price fallback for an empty book")
	dataDelay := flag.Duration("datadelay", defaultDataDelay, "observation window after each command")
	cont := flag.Bool("continueonfailure", false, "keep running suites after an assertion failure")
	findingsDir := flag.String("findingsdir", "findings", "directory for the findings journal")
	flag.Parse()

	_ = godotenv.Load()

	var (
		cfg *Config
		err error
	)
	if *path != "" {
		cfg, err = getYaml(*path)
	} else {
		cfg, err = fromFlags(*wsURL, *restURL, *symbol, *virtual, *amount, *initialMid, *dataDelay, *cont, *findingsDir)
	}
	if err != nil {
		return nil, err
	}

	cfg.Maker = Credentials{Key: os.Getenv("AUDIT_MAKER_KEY"), Secret: os.Getenv("AUDIT_MAKER_SECRET")}
	cfg.Taker = Credentials{Key: os.Getenv("AUDIT_TAKER_KEY"), Secret: os.Getenv("AUDIT_TAKER_SECRET")}
	if cfg.Maker.Key == "" || cfg.Taker.Key == "" {
		return nil, fmt.Errorf("missing api credentials: set AUDIT_MAKER_KEY/SECRET and AUDIT_TAKER_KEY/SECRET")
	}

	return cfg, nil
}

func fromFlags(wsURL, restURL, symbol, virtual, amountStr, initialMidStr string,
	dataDelay time.Duration, cont bool, findingsDir string) (*Config, error) {
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --amount provided, --amount=%s", amountStr)
	}
	initialMid, err := decimal.NewFromString(initialMidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --initialmid provided, --initialmid=%s", initialMidStr)
	}

	symbols := []string{symbol}
	if virtual != "" {
		symbols = append(symbols, virtual)
	}

	cfg := &Config{
		WSURL:             wsURL,
		RESTURL:           restURL,
		Symbols:           symbols,
		PrimaryPair:       symbol,
		VirtualPair:       virtual,
		Amount:            amount,
		InitialMid:        initialMid,
		InitialLast:       initialMid,
		MakerFee:          decimal.RequireFromString(defaultMakerFee),
		TakerFee:          decimal.RequireFromString(defaultTakerFee),
		DataDelay:         dataDelay,
		Dust:              map[string]decimal.Decimal{},
		ContinueOnFailure: cont,
		FindingsDir:       findingsDir,
	}
	return cfg, validate(cfg)
}

func getYaml(path string) (*Config, error) {
	var tmp ConfigTmp

	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(tmp.Amount)
	if err != nil {
		return nil, fmt.Errorf("incorrect 'amount' param in yaml config: %w", err)
	}
	initialMid, err := decimal.NewFromString(tmp.InitialMid)
	if err != nil {
		return nil, fmt.Errorf("incorrect 'initial_mid' param in yaml config: %w", err)
	}

	initialLast := initialMid
	if tmp.InitialLast != "" {
		initialLast, err = decimal.NewFromString(tmp.InitialLast)
		if err != nil {
			return nil, fmt.Errorf("incorrect 'initial_last' param in yaml config: %w", err)
		}
	}

	makerFee := decimal.RequireFromString(defaultMakerFee)
	if tmp.MakerFee != "" {
		makerFee, err = decimal.NewFromString(tmp.MakerFee)
		if err != nil {
			return nil, fmt.Errorf("incorrect 'maker_fee' param in yaml config (must be a decimal): %w", err)
		}
	}
	takerFee := decimal.RequireFromString(defaultTakerFee)
	if tmp.TakerFee != "" {
		takerFee, err = decimal.NewFromString(tmp.TakerFee)
		if err != nil {
			return nil, fmt.Errorf("incorrect 'taker_fee' param in yaml config (must be a decimal): %w", err)
		}
	}

	dust := make(map[string]decimal.Decimal, len(tmp.Dust))
	for ccy, v := range tmp.Dust {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("incorrect 'dust' entry for %s in yaml config: %w", ccy, err)
		}
		dust[strings.ToUpper(ccy)] = d
	}

	dataDelay := tmp.DataDelay
	if dataDelay == 0 {
		dataDelay = defaultDataDelay
	}
	findingsDir := tmp.FindingsDir
	if findingsDir == "" {
		findingsDir = "findings"
	}

	primary := tmp.PrimaryPair
	if primary == "" && len(tmp.Symbols) > 0 {
		primary = tmp.Symbols[0]
	}
	symbols := tmp.Symbols
	if len(symbols) == 0 && primary != "" {
		symbols = []string{primary}
		if tmp.VirtualPair != "" {
			symbols = append(symbols, tmp.VirtualPair)
		}
	}

	cfg := &Config{
		WSURL:             tmp.WSURL,
		RESTURL:           tmp.RESTURL,
		Symbols:           symbols,
		PrimaryPair:       primary,
		VirtualPair:       tmp.VirtualPair,
		Amount:            amount,
		InitialMid:        initialMid,
		InitialLast:       initialLast,
		MakerFee:          makerFee,
		TakerFee:          takerFee,
		DataDelay:         dataDelay,
		Dust:              dust,
		ContinueOnFailure: tmp.ContinueOnFailure,
		FindingsDir:       findingsDir,
	}
	return cfg, validate(cfg)
}

func validate(cfg *Config) error {
	if cfg.WSURL == "" || cfg.RESTURL == "" {
		return fmt.Errorf("both ws and rest endpoints are required")
	}
	if cfg.PrimaryPair == "" {
		return fmt.Errorf("primary pair is required")
	}
	if !strings.HasPrefix(cfg.PrimaryPair, "t") {
		return fmt.Errorf("invalid primary pair %q, expected a t-prefixed symbol like tBTCUSD", cfg.PrimaryPair)
	}
	if cfg.Amount.IsZero() || cfg.Amount.IsNegative() {
		return fmt.Errorf("amount must be positive, got %s", cfg.Amount)
	}
	return nil
}

// DustFor returns the tolerance for a currency, falling back to the default.
func (c *Config) DustFor(ccy string) decimal.Decimal {
	if d, ok := c.Dust[strings.ToUpper(ccy)]; ok {
		return d
	}
	return decimal.RequireFromString(defaultDust)
}
