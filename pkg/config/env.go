package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/PrivateCaptcha/powsolver/pkg/common"
)

var (
	errEmptyEnvVar  = errors.New("environment variable is empty")
	errEmptyEnvName = errors.New("environment variable name is empty")
)

type envConfigValue struct {
	key   common.ConfigKey
	value string
}

var _ common.ConfigItem = (*envConfigValue)(nil)

var (
	configKeyToEnvName []string
	configKeyStrMux    sync.Mutex
)

func init() {
	configKeyStrMux.Lock()
	defer configKeyStrMux.Unlock()

	if len(configKeyToEnvName) < int(common.COMMON_CONFIG_KEYS_COUNT) {
		configKeyToEnvName = make([]string, common.COMMON_CONFIG_KEYS_COUNT)
	}

	configKeyToEnvName[common.StageKey] = "STAGE"
	configKeyToEnvName[common.VerboseKey] = "POW_VERBOSE"
	configKeyToEnvName[common.AlgorithmKey] = "POW_ALGORITHM"
	configKeyToEnvName[common.WorkersKey] = "POW_WORKERS"
	configKeyToEnvName[common.CacheSizeKey] = "POW_CACHE_SIZE"
	configKeyToEnvName[common.CacheTTLKey] = "POW_CACHE_TTL"
	configKeyToEnvName[common.ProgressIntervalKey] = "POW_PROGRESS_INTERVAL"
	configKeyToEnvName[common.MaxNonceKey] = "POW_MAX_NONCE"
	configKeyToEnvName[common.LocalAddressKey] = "POW_LOCAL_ADDRESS"

	for i, v := range configKeyToEnvName {
		if len(v) == 0 {
			panic(fmt.Sprintf("found unconfigured value for key: %v", i))
		}
	}
}

func RegisterEnvNameForConfigKey(key common.ConfigKey, s string) error {
	if len(s) == 0 {
		return errEmptyEnvName
	}

	configKeyStrMux.Lock()
	defer configKeyStrMux.Unlock()

	if int(key) >= len(configKeyToEnvName) {
		newSlice := make([]string, int(key)+1)
		copy(newSlice, configKeyToEnvName)
		configKeyToEnvName = newSlice
	}

	if configKeyToEnvName[key] != "" {
		return fmt.Errorf("config: duplicate env name registration for config key %v", key)
	}

	configKeyToEnvName[key] = s
	return nil
}

func envName(key common.ConfigKey) string {
	configKeyStrMux.Lock()
	defer configKeyStrMux.Unlock()

	if int(key) < len(configKeyToEnvName) {
		return configKeyToEnvName[key]
	}

	return ""
}

func (v *envConfigValue) Key() common.ConfigKey {
	return v.key
}

func (v *envConfigValue) Value() string {
	return v.value
}

func (v *envConfigValue) Update(getenv func(string) string) error {
	name := envName(v.key)
	if len(name) == 0 {
		return errEmptyEnvName
	}

	value := getenv(name)
	v.value = value
	if len(value) == 0 {
		return errEmptyEnvVar
	}

	return nil
}

type envConfig struct {
	lock   sync.Mutex
	items  map[common.ConfigKey]*envConfigValue
	getenv func(string) string
}

var _ common.ConfigStore = (*envConfig)(nil)

func NewEnvConfig(getenv func(string) string) *envConfig {
	return &envConfig{
		items:  make(map[common.ConfigKey]*envConfigValue),
		getenv: getenv,
	}
}

func (c *envConfig) Get(key common.ConfigKey) common.ConfigItem {
	c.lock.Lock()
	defer c.lock.Unlock()

	item, ok := c.items[key]
	if ok {
		return item
	}

	item = &envConfigValue{
		key:   key,
		value: c.getenv(envName(key)),
	}
	c.items[key] = item

	return item
}

func (c *envConfig) Update(ctx context.Context) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for key, cfg := range c.items {
		if err := cfg.Update(c.getenv); err != nil {
			slog.Log(ctx, common.LevelTrace, "Cannot update environment config", "key", envName(key), common.ErrAttr(err))
		}
	}
}

// StaticItem is a fixed config value, used for flags that override the environment
type StaticItem struct {
	ConfigKey   common.ConfigKey
	ConfigValue string
}

var _ common.ConfigItem = (*StaticItem)(nil)

func (i *StaticItem) Key() common.ConfigKey { return i.ConfigKey }
func (i *StaticItem) Value() string         { return i.ConfigValue }
