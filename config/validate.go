package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if !cfg.Bitcoin.Enabled && !cfg.Ethereum.Enabled {
		return fmt.Errorf("at least one chain must be enabled")
	}

	if cfg.Bitcoin.Enabled {
		if err := validateEndpoints(cfg.Bitcoin.Endpoints, "bitcoin.endpoints"); err != nil {
			return err
		}
		if cfg.Bitcoin.Confirmations == 0 {
			return fmt.Errorf("bitcoin.confirmations must be at least 1")
		}
		if cfg.Bitcoin.FeeTarget < 0 {
			return fmt.Errorf("bitcoin.feetarget must not be negative")
		}
	}
	if cfg.Ethereum.Enabled {
		if err := validateEndpoints(cfg.Ethereum.Endpoints, "ethereum.endpoints"); err != nil {
			return err
		}
		if cfg.Ethereum.Confirmations == 0 {
			return fmt.Errorf("ethereum.confirmations must be at least 1")
		}
		if cfg.Ethereum.ChainID == 0 {
			return fmt.Errorf("ethereum.chainid is required")
		}
	}

	if cfg.Client.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be positive")
	}
	if cfg.Client.MaxRetries < 0 {
		return fmt.Errorf("client.retries must not be negative")
	}
	if cfg.Client.RequestsPerSecond < 0 {
		return fmt.Errorf("client.rps must not be negative")
	}

	if cfg.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll must be positive")
	}
	if cfg.Monitor.MaxDuration < cfg.Monitor.PollInterval {
		return fmt.Errorf("monitor.maxduration must be at least monitor.poll")
	}
	if cfg.Monitor.NotFoundTimeout <= 0 {
		return fmt.Errorf("monitor.notfoundtimeout must be positive")
	}

	return nil
}

func validateEndpoints(endpoints []string, field string) error {
	for i, e := range endpoints {
		u, err := url.Parse(e)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s[%d] must be an http or https URL", field, i)
		}
		if u.Host == "" {
			return fmt.Errorf("%s[%d] has no host", field, i)
		}
	}
	return nil
}
