package controllers

import (
	"context"

	"github.com/neferdidi/boba-backend/pkg/config"
)

type okPinger struct{ err error }

func (p okPinger) Ping(context.Context) error { return p.err }

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}
