package utils

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// LoadConfig loads <path>/.env into the process environment (existing variables win)
// and lets viper resolve flags bound through cobra against the environment.
func LoadConfig(path string) {
	envFile := filepath.Join(path, ".env")
	if err := godotenv.Load(envFile); err != nil {
		logrus.Debugf("[CONFIG] no %s file loaded: %v", envFile, err)
	}
	viper.AutomaticEnv()
}
