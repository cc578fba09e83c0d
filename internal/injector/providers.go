package injector

import (
	"crypto/tls"

	"github.com/forceviz/forceviz/internal/config"
	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/events/bus"
	"github.com/forceviz/forceviz/internal/core/observability/log"
	"github.com/forceviz/forceviz/internal/core/sensorfield"
	"github.com/forceviz/forceviz/internal/engine"
	"github.com/forceviz/forceviz/internal/render"
	"github.com/forceviz/forceviz/internal/server"
	"github.com/google/wire"
)

// App is the fully wired server process.
type App struct {
	Config config.Config
	Logger *log.Logger
	Events bus.EventBus
	Loop   *engine.Loop
	Hub    *server.Hub
	Server *server.Server
	// QUIC is nil unless server.quic_addr is set.
	QUIC *server.QUICFeed
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideEventBus,
	ProvideField,
	colorgrad.NewPicker,
	render.NewEncoder,
	ProvideHub,
	ProvideLoop,
	ProvideServer,
	ProvideQUICFeed,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg config.Config) (*log.Logger, error) {
	return cfg.Log.Logger()
}

// ProvideEventBus returns a bus that logs every field event at debug level.
func ProvideEventBus(logger *log.Logger) (bus.EventBus, error) {
	b := bus.New()
	l := logger.With(log.String("component", "events"))
	_, err := b.Subscribe(bus.AllKinds, func(e bus.Event) error {
		l.Debug("Field event", log.String("kind", e.Kind()), log.Any("data", e.Data()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func ProvideField(cfg config.Config, logger *log.Logger, events bus.EventBus) (*sensorfield.Field, error) {
	opts, err := cfg.FieldOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, sensorfield.WithLogger(logger), sensorfield.WithEventBus(events))
	return sensorfield.New(opts...), nil
}

func ProvideHub(cfg config.Config, encoder *render.Encoder, logger *log.Logger) *server.Hub {
	return server.NewHub(encoder, cfg.Server.WriteTimeout, cfg.Server.ClientBuffer, logger)
}

func ProvideLoop(cfg config.Config, field *sensorfield.Field, picker *colorgrad.Picker, hub *server.Hub, logger *log.Logger) *engine.Loop {
	return engine.New(field, picker,
		engine.WithInterval(cfg.Field.TickInterval()),
		engine.WithLogger(logger),
		engine.OnFrame(hub.PublishFrame))
}

func ProvideServer(cfg config.Config, loop *engine.Loop, hub *server.Hub, logger *log.Logger) *server.Server {
	return server.NewServer(cfg.Server, loop, hub, logger)
}

// ProvideQUICFeed returns the QUIC frame feed, or nil when it is disabled.
// Without a configured certificate pair the feed uses a self-signed one.
func ProvideQUICFeed(cfg config.Config, hub *server.Hub, logger *log.Logger) (*server.QUICFeed, error) {
	if cfg.Server.QUICAddr == "" {
		return nil, nil
	}
	var tlsConfig *tls.Config
	if cfg.Server.TLSCertFile != "" {
		var err error
		if tlsConfig, err = server.LoadTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile); err != nil {
			return nil, err
		}
	}
	return server.NewQUICFeed(cfg.Server.QUICAddr, tlsConfig, hub, cfg.Server.ClientBuffer, logger)
}
