package common

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

const (
	EnvPathStdin = "stdin"
)

// EnvMap is a snapshot of a .env file, or the process environment when no file is set
type EnvMap struct {
	path   string
	envMap map[string]string
	lock   sync.Mutex
}

func (em *EnvMap) GetEx(key string) (string, bool) {
	if len(key) == 0 {
		return "", false
	}

	em.lock.Lock()
	defer em.lock.Unlock()

	if em.envMap == nil {
		return os.LookupEnv(key)
	}

	if v, ok := em.envMap[key]; ok {
		return v, true
	}

	// values not present in the file can still come from the real environment
	return os.LookupEnv(key)
}

func (em *EnvMap) Get(key string) string {
	v, ok := em.GetEx(key)
	if !ok {
		slog.Log(context.Background(), LevelTrace, "Environment variable is not set", "key", key)
	}

	return v
}

// Update re-reads the file (SIGHUP); stdin cannot be re-read
func (em *EnvMap) Update() error {
	if (len(em.path) > 0) && (em.path != EnvPathStdin) {
		envMap, err := godotenv.Read(em.path)
		if err != nil {
			return err
		}

		em.lock.Lock()
		em.envMap = envMap
		em.lock.Unlock()
	}

	return nil
}

func NewEnvMap(path string, stdin io.Reader) (*EnvMap, error) {
	var envMap map[string]string

	if path == EnvPathStdin {
		var err error
		envMap, err = godotenv.Parse(stdin)
		if err != nil {
			return nil, err
		}
	} else if len(path) > 0 {
		var err error
		envMap, err = godotenv.Read(path)
		if err != nil {
			return nil, err
		}
	}

	return &EnvMap{envMap: envMap, path: path}, nil
}
