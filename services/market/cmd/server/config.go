package main

import (
	"os"
	"strconv"
	"strings"

	"astaverde/pkg/domain"
	"astaverde/pkg/token"
)

type serverConfig struct {
	Port         string
	DevMode      bool
	Owner        domain.Address
	Custody      domain.Address
	VaultAddr    domain.Address
	SCCMaxSupply int64
}

// Fixed custody addresses; engines are identified on the asset ledgers by
// these, not by anything configurable.
const (
	defaultCustody   = domain.Address("0x0000000000000000000000000000000000000a01")
	defaultVaultAddr = domain.Address("0x0000000000000000000000000000000000000a02")
	devOwner         = domain.Address("0x00000000000000000000000000000000000000a0")
)

func loadServerConfig() serverConfig {
	owner := domain.Address(strings.TrimSpace(os.Getenv("OWNER_ADDRESS")))
	if owner == "" {
		owner = devOwner
	}
	return serverConfig{
		Port:         envDefault("SERVICE_PORT", "8084"),
		DevMode:      envBoolDefault("MARKET_DEV_MODE", false),
		Owner:        owner,
		Custody:      defaultCustody,
		VaultAddr:    defaultVaultAddr,
		SCCMaxSupply: envInt64Default("SCC_MAX_SUPPLY", token.DefaultMaxSupply),
	}
}

func envDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBoolDefault(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

func envInt64Default(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
