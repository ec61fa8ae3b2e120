// Command memkv-server runs the memkv in-memory key-value server.
//
// Usage:
//
//	memkv-server --dir /var/lib/memkv --dbfilename dump.rdb --port 6379
//
// Configuration is read from an optional YAML file (--config), MEMKV_
// environment variables and flags, in increasing order of priority.
package main
