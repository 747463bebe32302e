// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"streamhub/modules/appconfig"

	"github.com/lmittmann/tint"
)

const usage = `usage: streamhub [command]

commands:
  serve                          run the HTTP API (default)
  migrate [up|down|status]       manage the database schema
  jwks <auth|publish>            print the key set of a signing domain
  verify-token <jwks-file> <jwt> check a token against a key set, as the media relay does
`

var errUsage = errors.New("bad usage")

func main() {
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			exitCode = 2
			return
		}
		slog.ErrorContext(ctx, "streamhub failed", slog.Any("error", err))
		exitCode = 1
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	// verify-token works offline from a key set file and needs no config
	if cmd == "verify-token" {
		if len(args) != 2 {
			return errUsage
		}
		return verifyToken(args[0], args[1], out)
	}

	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stderr))

	switch cmd {
	case "serve":
		return serve(ctx, cfg)
	case "migrate":
		action := "up"
		if len(args) > 0 {
			action = args[0]
		}
		return migrate(cfg, action, out)
	case "jwks":
		if len(args) != 1 {
			return errUsage
		}
		return printKeySet(cfg, args[0], out)
	default:
		return errUsage
	}
}

func newLogger(cfg appconfig.LogConfig, w io.Writer) *slog.Logger {
	level, err := appconfig.ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts))
	case "pretty":
		// colours only when writing to a terminal
		f, isFile := w.(*os.File)
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    !isFile || !isTerminal(f),
		}))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
