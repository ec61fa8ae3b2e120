package redisserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/memkv-go/internal/storage"
)

// ErrUnknownCommand is wrapped by the CommandError for an unrecognised keyword.
var ErrUnknownCommand = errors.New("unknown command")

// CommandError is a recoverable failure while parsing or executing a command.
// The client receives "-ERR <Reason>" and the connection stays open.
type CommandError struct {
	Reason string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Reason {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *CommandError) Unwrap() error { return e.Err }

// Reply renders the error for the wire.
func (e *CommandError) Reply() string {
	return ErrorReply("ERR " + e.Reason)
}

func commandErrorf(format string, args ...any) *CommandError {
	return &CommandError{Reason: fmt.Sprintf(format, args...)}
}

// Command is a parsed request, executed once against the key space.
type Command interface {
	Name() string
	Execute(ctx context.Context, store storage.Storage) (string, error)
}

// ParseCommand builds a Command from a decoded frame. Keywords are matched
// case-sensitively. now anchors relative expiries.
func ParseCommand(args []Entry, now time.Time) (Command, error) {
	if len(args) == 0 {
		return nil, commandErrorf("no command")
	}
	name, ok := args[0].AsText()
	if !ok {
		return nil, commandErrorf("command name must be a string")
	}

	switch name {
	case "PING":
		return Ping{}, nil
	case "ECHO":
		texts := make([]string, 0, len(args)-1)
		for _, a := range args[1:] {
			if s, ok := a.AsText(); ok {
				texts = append(texts, s)
			}
		}
		return Echo{Texts: texts}, nil
	case "GET":
		key, err := textArg(args, 1, name, "key")
		if err != nil {
			return nil, err
		}
		return Get{Key: key}, nil
	case "SET":
		return parseSet(args, now)
	case "CONFIG":
		sub, err := textArg(args, 1, name, "subcommand")
		if err != nil {
			return nil, err
		}
		if sub != "GET" {
			return nil, commandErrorf("unsupported CONFIG subcommand '%s'", sub)
		}
		key, err := textArg(args, 2, name, "parameter")
		if err != nil {
			return nil, err
		}
		return ConfigGet{Key: key}, nil
	case "SAVE":
		return Save{}, nil
	case "KEYS":
		pattern, err := textArg(args, 1, name, "pattern")
		if err != nil {
			return nil, err
		}
		return Keys{Pattern: pattern}, nil
	default:
		return nil, &CommandError{Reason: ErrUnknownCommand.Error(), Err: ErrUnknownCommand}
	}
}

// parseSet reads SET key value [PX millis]. Only a five element frame
// carries an expiry; the fourth element is not inspected.
func parseSet(args []Entry, now time.Time) (Command, error) {
	key, err := textArg(args, 1, "SET", "key")
	if err != nil {
		return nil, err
	}
	value, err := textArg(args, 2, "SET", "value")
	if err != nil {
		return nil, err
	}

	cmd := Set{Key: key, Value: value}
	if len(args) != 5 {
		return cmd, nil
	}

	var ms int64
	switch a := args[4]; a.Kind {
	case KindInteger:
		ms = int64(a.Int)
	case KindBulk, KindSimple:
		ms, err = strconv.ParseInt(a.Text, 10, 64)
		if err != nil {
			return nil, &CommandError{Reason: "value is not an integer or out of range", Err: err}
		}
	default:
		return nil, commandErrorf("value is not an integer or out of range")
	}
	if ms < 0 || ms > math.MaxInt64/int64(time.Millisecond) {
		return nil, commandErrorf("invalid expire time in 'SET' command")
	}
	cmd.Expiry = now.Add(time.Duration(ms) * time.Millisecond)
	return cmd, nil
}

func textArg(args []Entry, i int, cmd, what string) (string, error) {
	if i >= len(args) {
		return "", commandErrorf("wrong number of arguments for '%s' command", cmd)
	}
	s, ok := args[i].AsText()
	if !ok {
		return "", commandErrorf("%s for '%s' must be a string", what, cmd)
	}
	return s, nil
}

// Ping replies PONG.
type Ping struct{}

func (Ping) Name() string { return "PING" }

func (Ping) Execute(context.Context, storage.Storage) (string, error) {
	return Simple("PONG").Encode(), nil
}

// Echo replies with its arguments joined by CRLF.
type Echo struct {
	Texts []string
}

func (Echo) Name() string { return "ECHO" }

func (c Echo) Execute(context.Context, storage.Storage) (string, error) {
	return Simple(strings.Join(c.Texts, CRLF)).Encode(), nil
}

// Get replies with the live value of Key, or nil.
type Get struct {
	Key string
}

func (Get) Name() string { return "GET" }

func (c Get) Execute(ctx context.Context, store storage.Storage) (string, error) {
	v, ok := store.Get(ctx, c.Key)
	if !ok {
		return Nil().Encode(), nil
	}
	return Bulk(v).Encode(), nil
}

// Set stores Value under Key. A zero Expiry never expires.
type Set struct {
	Key    string
	Value  string
	Expiry time.Time
}

func (Set) Name() string { return "SET" }

func (c Set) Execute(ctx context.Context, store storage.Storage) (string, error) {
	store.Set(ctx, c.Key, c.Value, c.Expiry)
	return Simple("OK").Encode(), nil
}

// ConfigGet replies with a snapshot location parameter.
type ConfigGet struct {
	Key string
}

func (ConfigGet) Name() string { return "CONFIG" }

func (c ConfigGet) Execute(_ context.Context, store storage.Storage) (string, error) {
	cfg := store.Config()
	var value string
	switch c.Key {
	case "dir":
		value = cfg.Dir
	case "dbfilename":
		value = cfg.DBFilename
	default:
		return Nil().Encode(), nil
	}
	return Array{Bulk(c.Key), Bulk(value)}.Encode(), nil
}

// Save writes a snapshot synchronously.
type Save struct{}

func (Save) Name() string { return "SAVE" }

func (Save) Execute(ctx context.Context, store storage.Storage) (string, error) {
	if err := store.Save(ctx); err != nil {
		return "", &CommandError{Reason: "snapshot save failed", Err: err}
	}
	return Simple("OK").Encode(), nil
}

// Keys replies with the live keys matching Pattern.
type Keys struct {
	Pattern string
}

func (Keys) Name() string { return "KEYS" }

func (c Keys) Execute(ctx context.Context, store storage.Storage) (string, error) {
	keys, err := store.Keys(ctx, c.Pattern)
	if err != nil {
		if errors.Is(err, storage.ErrKeysUnsupported) {
			return Nil().Encode(), nil
		}
		return "", &CommandError{Reason: "keys failed", Err: err}
	}
	reply := make(Array, len(keys))
	for i, k := range keys {
		reply[i] = Bulk(k)
	}
	return reply.Encode(), nil
}
