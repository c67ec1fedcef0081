package config

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PrivateCaptcha/powsolver/pkg/common"
)

func AsBool(item common.ConfigItem) bool {
	value := strings.TrimSpace(item.Value())
	if len(value) == 0 {
		return false
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("Failed to parse boolean config value", "key", item.Key(), "value", value, common.ErrAttr(err))
		return false
	}

	return b
}

func AsInt(item common.ConfigItem, fallback int) int {
	value := strings.TrimSpace(item.Value())
	if len(value) == 0 {
		return fallback
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Failed to parse integer config value", "key", item.Key(), "value", value, common.ErrAttr(err))
		return fallback
	}

	return i
}

func AsUint64(item common.ConfigItem, fallback uint64) uint64 {
	value := strings.TrimSpace(item.Value())
	if len(value) == 0 {
		return fallback
	}

	u, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		slog.Warn("Failed to parse unsigned config value", "key", item.Key(), "value", value, common.ErrAttr(err))
		return fallback
	}

	return u
}

func AsDuration(item common.ConfigItem, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(item.Value())
	if len(value) == 0 {
		return fallback
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Failed to parse duration config value", "key", item.Key(), "value", value, common.ErrAttr(err))
		return fallback
	}

	return d
}
