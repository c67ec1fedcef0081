package common

type ConfigKey int

const (
	StageKey ConfigKey = iota
	VerboseKey
	AlgorithmKey
	WorkersKey
	CacheSizeKey
	CacheTTLKey
	ProgressIntervalKey
	MaxNonceKey
	LocalAddressKey
	// Add new fields _above_
	COMMON_CONFIG_KEYS_COUNT
)
