package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"streamhub/modules/appconfig"
	"streamhub/modules/db/postgres"
	"streamhub/modules/jwks"
	"streamhub/modules/keys"
)

func migrate(cfg *appconfig.Config, action string, out io.Writer) error {
	m := postgres.NewMigrator(cfg.Postgres.WriteConfig.URL())
	switch action {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "status":
		pending, err := m.Pending()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "pending migrations: %d\n", pending)
		return err
	default:
		return errUsage
	}
}

func printKeySet(cfg *appconfig.Config, domain string, out io.Writer) error {
	d := keys.Domain(domain)
	if !d.Valid() {
		return errUsage
	}
	keyring, err := keys.Load(cfg.Keys)
	if err != nil {
		return err
	}
	pair, err := keyring.Pair(d)
	if err != nil {
		return err
	}
	if (d == keys.DomainAuth && cfg.Keys.AuthPrivateKeyFile == "") ||
		(d == keys.DomainPublish && cfg.Keys.PublishPrivateKeyFile == "") {
		slog.Warn("no private key file configured, printing a key set for a throwaway key", slog.String("domain", domain))
	}
	pub, err := jwks.NewPublisher(pair)
	if err != nil {
		return err
	}
	return writeJSON(out, pub)
}

func verifyToken(jwksFile, raw string, out io.Writer) error {
	doc, err := os.ReadFile(jwksFile)
	if err != nil {
		return fmt.Errorf("read key set: %w", err)
	}
	v, err := jwks.NewRemoteVerifier(doc, nil)
	if err != nil {
		return err
	}
	claims, err := v.Verify(raw)
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}
	return writeJSON(out, claims)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
