package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elocalpass/elocalpass-backend/pkg/config"
)

func TestListenAddrPrefersPlatformPort(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Port: "8080"}}

	t.Setenv("PORT", "")
	assert.Equal(t, ":8080", listenAddr(cfg))

	t.Setenv("PORT", "3000")
	assert.Equal(t, ":3000", listenAddr(cfg))
}
