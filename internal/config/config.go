package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Provider   Provider   `mapstructure:"provider"`
	Market     Market     `mapstructure:"market"`
	Indicators Indicators `mapstructure:"indicators"`
	Signals    Signals    `mapstructure:"signals"`
	Trading    Trading    `mapstructure:"trading"`
	Scheduler  Scheduler  `mapstructure:"scheduler"`
	Stream     Stream     `mapstructure:"stream"`
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Logger     Logger     `mapstructure:"logger"`
	Watchlist  []string   `mapstructure:"watchlist"`
}

// Provider holds the configuration for the external quote and sentiment APIs.
type Provider struct {
	BaseURL        string  `mapstructure:"base_url"`
	SentimentURL   string  `mapstructure:"sentiment_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Market holds the configuration for the price cache.
type Market struct {
	PriceTTLSeconds int    `mapstructure:"price_ttl_seconds"`
	HistoryLimit    int    `mapstructure:"history_limit"`
	HistoryPeriod   string `mapstructure:"history_period"`
	HistoryInterval string `mapstructure:"history_interval"`
}

// Indicators holds the thresholds for the indicator engine.
type Indicators struct {
	RSIPeriod             int     `mapstructure:"rsi_period"`
	RSIOverbought         float64 `mapstructure:"rsi_overbought"`
	RSIOversold           float64 `mapstructure:"rsi_oversold"`
	MACDFast              int     `mapstructure:"macd_fast"`
	MACDSlow              int     `mapstructure:"macd_slow"`
	MACDSignal            int     `mapstructure:"macd_signal"`
	SMAPeriods            []int   `mapstructure:"sma_periods"`
	BollingerWindow       int     `mapstructure:"bollinger_window"`
	BollingerMultiplier   float64 `mapstructure:"bollinger_multiplier"`
	VolumeSpikeMultiplier float64 `mapstructure:"volume_spike_multiplier"`
}

// Weights holds the per-indicator vote weights for the signal generator.
type Weights struct {
	RSI       float64 `mapstructure:"rsi"`
	MACD      float64 `mapstructure:"macd"`
	Trend     float64 `mapstructure:"trend"`
	Bollinger float64 `mapstructure:"bollinger"`
	Sentiment float64 `mapstructure:"sentiment"`
}

// Signals holds the configuration for the signal generator.
type Signals struct {
	Weights              Weights `mapstructure:"weights"`
	VolumeBoost          float64 `mapstructure:"volume_boost"`
	BuyThreshold         float64 `mapstructure:"buy_threshold"`
	SellThreshold        float64 `mapstructure:"sell_threshold"`
	AutoExecuteThreshold float64 `mapstructure:"auto_execute_threshold"`
	AutoTradingEnabled   bool    `mapstructure:"auto_trading_enabled"`
	PositionSize         float64 `mapstructure:"position_size"`
}

// Trading holds the configuration for the paper-trading ledger.
type Trading struct {
	StartingCash float64 `mapstructure:"starting_cash"`
	AllowShort   bool    `mapstructure:"allow_short"`
}

// Scheduler holds the cadences for the periodic jobs, in seconds.
type Scheduler struct {
	PriceInterval     int `mapstructure:"price_interval"`
	SignalInterval    int `mapstructure:"signal_interval"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
}

// Stream holds the configuration for the broadcast hub.
type Stream struct {
	QueueSize int `mapstructure:"queue_size"`
}

// Server holds the configuration for the HTTP server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

func setDefaults() {
	viper.SetDefault("provider.timeout_seconds", 5)
	viper.SetDefault("provider.rate_limit", 10) // requests per second
	viper.SetDefault("provider.rate_limit_burst", 5)

	viper.SetDefault("market.price_ttl_seconds", 10)
	viper.SetDefault("market.history_limit", 500)
	viper.SetDefault("market.history_period", "1y")
	viper.SetDefault("market.history_interval", "1d")

	viper.SetDefault("indicators.rsi_period", 14)
	viper.SetDefault("indicators.rsi_overbought", 70)
	viper.SetDefault("indicators.rsi_oversold", 30)
	viper.SetDefault("indicators.macd_fast", 12)
	viper.SetDefault("indicators.macd_slow", 26)
	viper.SetDefault("indicators.macd_signal", 9)
	viper.SetDefault("indicators.sma_periods", []int{20, 50})
	viper.SetDefault("indicators.bollinger_window", 20)
	viper.SetDefault("indicators.bollinger_multiplier", 2.0)
	viper.SetDefault("indicators.volume_spike_multiplier", 2.0)

	viper.SetDefault("signals.weights.rsi", 0.30)
	viper.SetDefault("signals.weights.macd", 0.20)
	viper.SetDefault("signals.weights.trend", 0.20)
	viper.SetDefault("signals.weights.bollinger", 0.15)
	viper.SetDefault("signals.weights.sentiment", 0.15)
	viper.SetDefault("signals.volume_boost", 0.25)
	viper.SetDefault("signals.buy_threshold", 0.35)
	viper.SetDefault("signals.sell_threshold", -0.35)
	viper.SetDefault("signals.auto_execute_threshold", 0.75)
	viper.SetDefault("signals.auto_trading_enabled", false)
	viper.SetDefault("signals.position_size", 1000)

	viper.SetDefault("trading.starting_cash", 100000)
	viper.SetDefault("trading.allow_short", false)

	viper.SetDefault("scheduler.price_interval", 10)
	viper.SetDefault("scheduler.signal_interval", 45)
	viper.SetDefault("scheduler.heartbeat_interval", 30)

	viper.SetDefault("stream.queue_size", 64)

	viper.SetDefault("server.port", 8000)
	viper.SetDefault("database.dsn", "paper-trader.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
}
