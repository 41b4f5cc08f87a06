// SPDX-License-Identifier: ice License 1.0

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ice-blockchain/wsupgrade/config"
)

func TestMustLoadFromKey(t *testing.T) {
	var cfg struct {
		Encoder string `yaml:"encoder"`
		Level   string `yaml:"level"`
	}
	config.MustLoadFromKey("logger", &cfg)

	assert.Equal(t, "console", cfg.Encoder)
	assert.Equal(t, "info", cfg.Level)
}
