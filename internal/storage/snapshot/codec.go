package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Magic and version written at the start of every snapshot.
var magicBytes = []byte("REDIS")

const Version uint32 = 9

// Opcodes and type bytes.
const (
	opAux          = 0xFA
	opResizeDB     = 0xFB
	opExpireMillis = 0xFC
	opExpireSecs   = 0xFD
	opSelectDB     = 0xFE
	opEOF          = 0xFF
	typeString     = 0x00
)

// MaxStringLen is the longest key or value a 1-byte length prefix can carry.
const MaxStringLen = 255

var (
	// ErrFormat reports a structural violation. Decode returns it together with
	// the entries read before the violation.
	ErrFormat = errors.New("snapshot: invalid format")

	// ErrStringTooLong is returned by Encode when a key or value does not fit
	// the 1-byte length prefix. Nothing is written in that case.
	ErrStringTooLong = errors.New("snapshot: string exceeds 255 bytes")
)

// auxFields are written into the metadata section.
var auxFields = [][2]string{
	{"redis-ver", "7.2.0"},
	{"redis-bits", "64"},
}

// Entry is one key-value pair in a snapshot. A zero ExpiresAt means the key
// never expires.
type Entry struct {
	Key       string
	Value     string
	ExpiresAt time.Time
}

// HasExpiry reports whether the entry carries a deadline.
func (e Entry) HasExpiry() bool { return !e.ExpiresAt.IsZero() }

// Encode writes entries to w in snapshot format.
//
// All entries are validated before the first byte is written, so a rejected
// key space never leaves a partial snapshot behind.
func Encode(w io.Writer, entries []Entry) error {
	expiring := 0
	for _, e := range entries {
		if len(e.Key) > MaxStringLen {
			return fmt.Errorf("%w: key %.32q... (%d bytes)", ErrStringTooLong, e.Key, len(e.Key))
		}
		if len(e.Value) > MaxStringLen {
			return fmt.Errorf("%w: value of key %q (%d bytes)", ErrStringTooLong, e.Key, len(e.Value))
		}
		if e.HasExpiry() {
			expiring++
		}
	}

	bw := bufio.NewWriter(w)

	bw.Write(magicBytes)
	var ver [4]byte
	binary.BigEndian.PutUint32(ver[:], Version)
	bw.Write(ver[:])

	for _, f := range auxFields {
		bw.WriteByte(opAux)
		writeString(bw, f[0])
		writeString(bw, f[1])
	}

	bw.WriteByte(opSelectDB)
	bw.WriteByte(0x00)
	bw.WriteByte(opResizeDB)
	bw.WriteByte(sizeHint(len(entries)))
	bw.WriteByte(sizeHint(expiring))

	for _, e := range entries {
		if e.HasExpiry() {
			ms := e.ExpiresAt.UnixMilli()
			if ms < 0 {
				ms = 0
			}
			var ts [8]byte
			binary.LittleEndian.PutUint64(ts[:], uint64(ms))
			bw.WriteByte(opExpireMillis)
			bw.Write(ts[:])
			bw.WriteByte(typeString)
		} else {
			bw.WriteByte(typeString)
		}
		writeString(bw, e.Key)
		writeString(bw, e.Value)
	}

	bw.WriteByte(opEOF)
	return bw.Flush()
}

func writeString(bw *bufio.Writer, s string) {
	bw.WriteByte(byte(len(s)))
	bw.WriteString(s)
}

func sizeHint(n int) byte {
	if n > 0xFF {
		return 0xFF
	}
	return byte(n)
}

// Decode reads a snapshot from r.
//
// On a structural violation Decode stops and returns the entries decoded so
// far along with an error wrapping ErrFormat. Deadlines already in the past
// are kept; callers treat them as expired.
func Decode(r io.Reader) ([]Entry, error) {
	d := &decoder{r: bufio.NewReader(r)}
	if err := d.header(); err != nil {
		return nil, err
	}
	if err := d.skipMetadata(); err != nil {
		return nil, err
	}
	if err := d.databaseStart(); err != nil {
		return nil, err
	}

	var entries []Entry
	for {
		e, done, err := d.entry()
		if err != nil {
			return entries, err
		}
		if done {
			return entries, nil
		}
		entries = append(entries, e)
	}
}

type decoder struct {
	r *bufio.Reader
}

func (d *decoder) fail(what string, err error) error {
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: %w", ErrFormat, what, err)
	}
	return fmt.Errorf("%w: %s", ErrFormat, what)
}

func (d *decoder) header() error {
	var hdr [9]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		return d.fail("file too short", err)
	}
	if !bytes.Equal(hdr[:5], magicBytes) {
		return d.fail("bad magic", nil)
	}
	// hdr[5:9] holds the version; any value is accepted.
	return nil
}

func (d *decoder) skipMetadata() error {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return d.fail("metadata section not terminated", err)
		}
		if b == opSelectDB {
			return nil
		}
	}
}

func (d *decoder) databaseStart() error {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return d.fail("database section not found", err)
		}
		if b != opResizeDB {
			continue
		}
		// Size hints are advisory.
		var hints [2]byte
		if _, err := io.ReadFull(d.r, hints[:]); err != nil {
			return d.fail("truncated size hints", err)
		}
		return nil
	}
}

func (d *decoder) entry() (Entry, bool, error) {
	t, err := d.r.ReadByte()
	if err != nil {
		return Entry{}, false, d.fail("missing end marker", err)
	}

	var e Entry
	switch t {
	case opEOF:
		return Entry{}, true, nil
	case typeString:
	case opExpireMillis:
		var ts [8]byte
		if _, err := io.ReadFull(d.r, ts[:]); err != nil {
			return Entry{}, false, d.fail("truncated expiry", err)
		}
		e.ExpiresAt = time.UnixMilli(int64(binary.LittleEndian.Uint64(ts[:])))
		if _, err := d.r.ReadByte(); err != nil {
			return Entry{}, false, d.fail("truncated expiry", err)
		}
	case opExpireSecs:
		var ts [4]byte
		if _, err := io.ReadFull(d.r, ts[:]); err != nil {
			return Entry{}, false, d.fail("truncated expiry", err)
		}
		e.ExpiresAt = time.Unix(int64(binary.LittleEndian.Uint32(ts[:])), 0)
		if _, err := d.r.ReadByte(); err != nil {
			return Entry{}, false, d.fail("truncated expiry", err)
		}
	default:
		return Entry{}, false, d.fail(fmt.Sprintf("unknown entry type 0x%02X", t), nil)
	}

	if e.Key, err = d.string(); err != nil {
		return Entry{}, false, d.fail("truncated key", err)
	}
	if e.Value, err = d.string(); err != nil {
		return Entry{}, false, d.fail("truncated value", err)
	}
	return e, false, nil
}

func (d *decoder) string() (string, error) {
	n, err := d.r.ReadByte()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
