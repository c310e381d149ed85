package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetAllSettings returns the non-secret settings currently loaded in memory.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_debug":                   Global.App.Debug,
		"app_version":                 Global.App.Version,
		"database_driver":             Global.Database.Driver,
		"valkey_enabled":              Global.Database.ValkeyEnabled,
		"dispatch_country_code":       Global.Dispatch.CountryCode,
		"dispatch_bridge_daily_limit": Global.Dispatch.BridgeDailyLimit,
		"dispatch_bridge_delay_min":   Global.Dispatch.BridgeDelayMin.String(),
		"dispatch_bridge_delay_max":   Global.Dispatch.BridgeDelayMax.String(),
		"dispatch_official_delay_min": Global.Dispatch.OfficialDelayMin.String(),
		"dispatch_official_delay_max": Global.Dispatch.OfficialDelayMax.String(),
		"events_enabled":              Global.Events.AMQPURL != "",
		"ai_provider":                 Global.AI.Provider,
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvDuration accepts Go durations ("30s") or bare seconds ("30").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
