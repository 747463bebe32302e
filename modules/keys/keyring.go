package keys

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrMissingDomain   = errors.New("keyring is missing a signing domain")
	ErrDuplicateDomain = errors.New("keyring has two pairs for one domain")
	ErrSharedKey       = errors.New("signing domains must not share keys")
)

type (
	// Config is parsed with the KEYS_ prefix.
	Config struct {
		Bits int `env:"BITS" envDefault:"2048"`

		AuthKeyID          string `env:"AUTH_KEY_ID" envDefault:"auth-key"`
		AuthPrivateKeyFile string `env:"AUTH_PRIVATE_KEY_FILE"`

		PublishKeyID          string `env:"PUBLISH_KEY_ID" envDefault:"mediamtx-key"`
		PublishPrivateKeyFile string `env:"PUBLISH_PRIVATE_KEY_FILE"`
	}

	// Keyring holds exactly one pair per signing domain.
	Keyring struct {
		pairs map[Domain]KeyPair
	}
)

func NewKeyring(pairs ...KeyPair) (*Keyring, error) {
	kr := &Keyring{pairs: make(map[Domain]KeyPair, 2)}
	for _, p := range pairs {
		if p.IsZero() {
			return nil, ErrWeakKey
		}
		if _, ok := kr.pairs[p.domain]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDomain, p.domain)
		}
		for d, other := range kr.pairs {
			if other.keyID == p.keyID || other.private.N.Cmp(p.private.N) == 0 {
				return nil, fmt.Errorf("%w: %s and %s", ErrSharedKey, d, p.domain)
			}
		}
		kr.pairs[p.domain] = p
	}
	for _, d := range []Domain{DomainAuth, DomainPublish} {
		if _, ok := kr.pairs[d]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingDomain, d)
		}
	}
	return kr, nil
}

// Pair returns the key pair of a domain.
func (k *Keyring) Pair(d Domain) (KeyPair, error) {
	p, ok := k.pairs[d]
	if !ok {
		return KeyPair{}, fmt.Errorf("%w: %q", ErrUnknownDomain, d)
	}
	return p, nil
}

// MustPair is for wiring code that already built the keyring successfully.
func (k *Keyring) MustPair(d Domain) KeyPair {
	p, err := k.Pair(d)
	if err != nil {
		panic(err)
	}
	return p
}

// Load builds the process keyring. Any failure here must stop the process.
func Load(cfg Config) (*Keyring, error) {
	auth, generatedAuth, err := LoadOrGenerate(DomainAuth, cfg.AuthKeyID, cfg.AuthPrivateKeyFile, cfg.Bits)
	if err != nil {
		return nil, fmt.Errorf("auth key: %w", err)
	}
	publish, generatedPublish, err := LoadOrGenerate(DomainPublish, cfg.PublishKeyID, cfg.PublishPrivateKeyFile, cfg.Bits)
	if err != nil {
		return nil, fmt.Errorf("publish key: %w", err)
	}

	slog.Info("signing keys ready",
		slog.Any("auth", auth),
		slog.Bool("auth_generated", generatedAuth),
		slog.Any("publish", publish),
		slog.Bool("publish_generated", generatedPublish),
	)
	return NewKeyring(auth, publish)
}
