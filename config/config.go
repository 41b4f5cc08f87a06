// SPDX-License-Identifier: ice License 1.0

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

//nolint:gochecknoinits // Because we load the configs once, for the whole runtime
func init() {
	loadFirstApplicationConfigFile()
	dotEnvPath := `.env`
	for attempt := 0; attempt < 5; attempt++ {
		if err := godotenv.Load(dotEnvPath); err == nil {
			break
		}
		dotEnvPath = fmt.Sprintf(`../%v`, dotEnvPath)
	}
}

func MustLoadFromKey(key string, cfg any) {
	if err := viper.UnmarshalKey(key, cfg); err != nil {
		log.Panic(errors.Wrapf(err, "failed to load config by key %q", key))
	}
}

func loadFirstApplicationConfigFile() {
	for _, file := range applicationConfigFileCandidates() {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err == nil {
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Panic(err)
		}
	}

	log.Panic(errors.New("could not find any application.yaml files"))
}

// Probed in order: the calling package's own `.testdata`, the working directory, the
// binary's directory, and finally the module root as the shared fallback.
func applicationConfigFileCandidates() []string {
	var candidates []string
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates,
			filepath.Join(wd, ".testdata", "application.yaml"),
			filepath.Join(wd, "application.yaml"),
		)
	}
	if bin, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(bin), "application.yaml"))
	}
	//nolint:dogsled // Only the file is needed.
	_, callerFile, _, _ := runtime.Caller(0)

	return append(candidates, filepath.Join(filepath.Dir(callerFile), "..", "application.yaml"))
}
