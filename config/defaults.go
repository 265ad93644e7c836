package config

import "time"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Bitcoin: BitcoinConfig{
			Enabled:       true,
			Confirmations: 6,
			FeeTarget:     6,
		},
		Ethereum: EthereumConfig{
			Enabled:       true,
			Confirmations: 12,
			ChainID:       1,
		},
		Client: ClientConfig{
			Timeout:           10 * time.Second,
			MaxRetries:        3,
			RetryDelay:        500 * time.Millisecond,
			RateLimitDelay:    2 * time.Second,
			RequestsPerSecond: 10,
		},
		Monitor: MonitorConfig{
			PollInterval:    10 * time.Second,
			MaxDuration:     time.Hour,
			NotFoundTimeout: 10 * time.Minute,
			EvictAfter:      time.Minute,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
// Ethereum defaults target Sepolia.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Bitcoin.Confirmations = 3
	cfg.Ethereum.Confirmations = 3
	cfg.Ethereum.ChainID = 11155111
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
