package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("super-secret"))

	tcases := []struct {
		name        string
		addr        string
		dsn         string
		secret      string
		ringTimeout time.Duration
		errMsg      string
	}{
		{
			name:        "valid",
			addr:        "localhost:8080",
			dsn:         "postgres://localhost/chatrelay",
			secret:      secret,
			ringTimeout: 15 * time.Second,
		},
		{
			name:   "empty addr",
			dsn:    "postgres://localhost/chatrelay",
			secret: secret,
			errMsg: "server address cannot be empty",
		},
		{
			name:   "empty dsn",
			addr:   "localhost:8080",
			secret: secret,
			errMsg: "database DSN cannot be empty",
		},
		{
			name:   "empty secret",
			addr:   "localhost:8080",
			dsn:    "postgres://localhost/chatrelay",
			errMsg: "signing secret cannot be empty",
		},
		{
			name:   "invalid base64 secret",
			addr:   "localhost:8080",
			dsn:    "postgres://localhost/chatrelay",
			secret: "not-base64!!!",
			errMsg: "decode signing secret",
		},
		{
			name:        "negative ring timeout",
			addr:        "localhost:8080",
			dsn:         "postgres://localhost/chatrelay",
			secret:      secret,
			ringTimeout: -time.Second,
			errMsg:      "ring timeout cannot be negative",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.addr, tc.dsn, tc.secret, nil, tc.ringTimeout)
			if tc.errMsg != "" {
				assert.ErrorContains(t, err, tc.errMsg)
				assert.Nil(t, cfg)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.addr, cfg.ServerAddr)
			assert.Equal(t, tc.dsn, cfg.DatabaseDSN)
			assert.Equal(t, []byte("super-secret"), cfg.SigningKey)
			assert.Equal(t, tc.ringTimeout, cfg.RingTimeout)
		})
	}
}

func TestNewConfigDefaultRingTimeout(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("super-secret"))

	cfg, err := NewConfig("localhost:8080", "postgres://localhost/chatrelay", secret, nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, DefaultRingTimeout, cfg.RingTimeout)
}
