package modbus

import "log"

// Config configures a Server: the serial line it listens on, the slave
// addresses it answers to, and where it logs internal diagnostics. The
// teacher's Config.Mode comment once marked "rtu (ToDo)" — this is that
// mode, filled in and made the only mode, since a master/client role and
// TCP framing are both out of scope here.
type Config struct {
	Serial SerialConfig
	// Slaves lists every slave address this Server answers to. A bus may
	// host more than one logical slave behind a single physical Server,
	// so this is a set rather than a single byte.
	Slaves []byte
	// Logger receives diagnostics (recovered callback panics, transport
	// errors logged by the caller's loop). May be left nil.
	Logger *log.Logger
}

// Verify validates the Config, returning ErrInvalidParameter if it cannot
// be used to build a Server.
func (cfg Config) Verify() error {
	if cfg.Serial.Address == "" {
		return ErrInvalidParameter
	}
	if cfg.Serial.BaudRate <= 0 {
		return ErrInvalidParameter
	}
	if len(cfg.Slaves) == 0 {
		return ErrInvalidParameter
	}
	seen := make(map[byte]bool, len(cfg.Slaves))
	for _, s := range cfg.Slaves {
		if seen[s] {
			return ErrInvalidParameter
		}
		seen[s] = true
	}
	return nil
}

// Open validates cfg, opens its serial line and returns a ready-to-run
// Server bound to store.
func Open(cfg Config, store *Store) (*Server, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	transport, err := NewSerialTransport(cfg.Serial, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return NewServer(transport, cfg.Slaves, store, cfg.Logger), nil
}
