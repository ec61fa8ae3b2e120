package main

import (
	"github.com/urfave/cli/v2"
)

// flagKeys maps each flag that overrides configuration to its koanf key.
var flagKeys = map[string]string{
	"bind":          "server.redis.addr",
	"port":          "server.redis.port",
	"http-addr":     "server.http.addr",
	"dir":           "storage.dir",
	"dbfilename":    "storage.dbfilename",
	"save-interval": "storage.save_interval",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to YAML configuration file",
			EnvVars: []string{"MEMKV_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "dir",
			Usage: "Directory holding the snapshot file",
		},
		&cli.StringFlag{
			Name:  "dbfilename",
			Usage: "Snapshot file name inside --dir",
		},
		&cli.StringFlag{
			Name:  "bind",
			Usage: "Host to bind the RESP listener to",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "RESP listener port",
		},
		&cli.StringFlag{
			Name:  "http-addr",
			Usage: "Address for /metrics and /healthz (empty disables)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: json, text",
		},
		&cli.DurationFlag{
			Name:  "save-interval",
			Usage: "Period between background snapshots (0 disables)",
		},
	}
}

// flagOverrides returns the configuration keys set explicitly on the command
// line. Unset flags leave file and environment values in place.
func flagOverrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for name, key := range flagKeys {
		if !c.IsSet(name) {
			continue
		}
		out[key] = c.Value(name)
	}
	return out
}
