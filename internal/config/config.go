// Package config loads the messaging fabric's settings from the
// environment. There is no config file: every value is an env var with a
// built-in default, read once at startup.
package config

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/HumbleRetreat/meru/errs"
	"github.com/HumbleRetreat/meru/internal/transport"
	"github.com/HumbleRetreat/meru/internal/wire"
)

// Fixed ports for the three broker-side sockets. These are not
// configurable: they're assigned once and workers/broker must agree on
// them out of band.
const (
	CollectorPort = 24052 // workers push actions here
	PublisherPort = 24051 // workers subscribe here
	SnapshotPort  = 24053 // RequireState/Ping request-reply channel
)

// Config holds every environment-sourced setting the broker and worker
// packages need at startup.
type Config struct {
	BindAddress   string // BIND_ADDRESS, interface the broker listens on
	BrokerAddress string // BROKER_ADDRESS, host workers dial

	SerializationMethod string // MERU_SERIALIZATION_METHOD: "json" or "binary"
	Backend             wire.Backend

	ReceiveTimeoutMillis int // MERU_RECEIVE_TIMEOUT, snapshot-channel read deadline

	HostnameInIdentity bool   // MERU_HOSTNAME_IN_IDENTITY
	ProcessName        string // MERU_PROCESS, empty means "derive from time"

	SSHTunnel string // SSH_TUNNEL, tunnel spec (e.g. "user@gateway:22"); empty means direct TCP

	Debug bool // MERU_DEBUG, console logging + verbose broker/worker logs

	TypeManifestPath string // MERU_TYPE_MANIFEST, optional path to a wire.Manifest YAML file
}

// Load reads the environment (with sane defaults for everything) and
// validates it. An invalid MERU_SERIALIZATION_METHOD, or a receive
// timeout that is not an integer or is negative, is a *errs.ConfigError.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("bind_address", "127.0.0.1")
	v.SetDefault("broker_address", "127.0.0.1")
	v.SetDefault("meru_serialization_method", "json")
	v.SetDefault("meru_receive_timeout", 4000)
	v.SetDefault("meru_hostname_in_identity", true)
	v.SetDefault("meru_process", "")
	v.SetDefault("ssh_tunnel", "")
	v.SetDefault("meru_debug", false)
	v.SetDefault("meru_type_manifest", "")

	for _, key := range []string{
		"bind_address", "broker_address", "meru_serialization_method",
		"meru_receive_timeout", "meru_hostname_in_identity", "meru_process",
		"ssh_tunnel", "meru_debug", "meru_type_manifest",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, &errs.ConfigError{Key: key, Message: err.Error()}
		}
	}

	serialization := v.GetString("meru_serialization_method")
	backend, err := wire.ParseBackend(serialization)
	if err != nil {
		return nil, err
	}

	timeout, err := strconv.Atoi(v.GetString("meru_receive_timeout"))
	if err != nil {
		return nil, &errs.ConfigError{Key: "MERU_RECEIVE_TIMEOUT", Message: "not an integer"}
	}
	if timeout < 0 {
		return nil, &errs.ConfigError{Key: "MERU_RECEIVE_TIMEOUT", Message: "cannot be negative"}
	}

	return &Config{
		BindAddress:          v.GetString("bind_address"),
		BrokerAddress:        v.GetString("broker_address"),
		SerializationMethod:  serialization,
		Backend:              backend,
		ReceiveTimeoutMillis: timeout,
		HostnameInIdentity:   v.GetBool("meru_hostname_in_identity"),
		ProcessName:          v.GetString("meru_process"),
		SSHTunnel:            v.GetString("ssh_tunnel"),
		Debug:                v.GetBool("meru_debug"),
		TypeManifestPath:     v.GetString("meru_type_manifest"),
	}, nil
}

// Dialer builds the worker-side transport.Dialer implied by SSHTunnel: a
// direct dialer when empty, or that same dialer wrapped in
// transport.TunnelDialer(spec, ...) otherwise. This is the one place
// SSHTunnel and transport.TunnelDialer are wired together; an embedding
// application passes the result as worker.Config.Dial.
func (c *Config) Dialer(log zerolog.Logger) transport.Dialer {
	direct := transport.DirectDialer()
	if c.SSHTunnel == "" {
		return direct
	}
	return transport.TunnelDialer(direct, c.SSHTunnel, log)
}
