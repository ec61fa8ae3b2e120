// Package redisserver serves the memkv key space over the RESP protocol.
//
// Request frames are arrays of bulk strings or integers. Replies use simple
// strings, bulk strings, nil, integers, arrays and errors.
//
// Supported commands (keywords are case-sensitive):
//   - PING, ECHO
//   - GET, SET (with an optional PX expiry)
//   - CONFIG GET dir|dbfilename
//   - SAVE, KEYS
//
// Command errors are replied to and the connection stays open. Malformed
// frames get an error reply and the connection is closed, except for an empty
// array which is consumed whole.
package redisserver
