package injector

import (
	"context"
	"testing"

	"github.com/forceviz/forceviz/internal/config"
	"github.com/forceviz/forceviz/internal/core/events/bus"
	"github.com/forceviz/forceviz/internal/core/sensorfield"
	"github.com/forceviz/forceviz/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeApp(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "error"
	app, err := InitializeApp(cfg)
	require.NoError(t, err)
	require.NotNil(t, app.Server)
	assert.Nil(t, app.QUIC)

	added := 0
	_, err = app.Events.Subscribe(sensorfield.EventSensorAdded, func(bus.Event) error {
		added++
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = app.Loop.Run(ctx) }()

	var n int
	require.NoError(t, app.Loop.Apply(ctx, func(s *engine.State) {
		s.Field.AddSensor()
		n = s.Field.Len()
	}))
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, added)
}

func TestInitializeAppRejectsBadRamp(t *testing.T) {
	cfg := config.Default()
	cfg.Ramp.Low = "nothex"
	_, err := InitializeApp(cfg)
	assert.Error(t, err)
}

func TestInitializeAppWithQUICFeed(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Server.QUICAddr = "127.0.0.1:0"
	app, err := InitializeApp(cfg)
	require.NoError(t, err)
	require.NotNil(t, app.QUIC)

	require.NoError(t, app.QUIC.Start(context.Background()))
	assert.NotNil(t, app.QUIC.Addr())
	assert.NoError(t, app.QUIC.Stop())
}

func TestInitializeAppMissingCertificate(t *testing.T) {
	cfg := config.Default()
	cfg.Server.QUICAddr = "127.0.0.1:0"
	cfg.Server.TLSCertFile = "does-not-exist.pem"
	cfg.Server.TLSKeyFile = "does-not-exist.key"
	_, err := InitializeApp(cfg)
	assert.Error(t, err)
}
