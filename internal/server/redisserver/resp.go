package redisserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Protocol limits to keep a single client from exhausting memory.
const (
	// MaxArrayLen limits the number of elements in a command frame.
	MaxArrayLen = 1024

	// MaxBulkLen limits the size of a single bulk string (512KB).
	MaxBulkLen = 512 * 1024

	// maxHeaderLen bounds "*<n>\r\n", "$<n>\r\n" and ":<n>\r\n" lines.
	maxHeaderLen = 64
)

// CRLF terminates every protocol line.
const CRLF = "\r\n"

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")

	// ErrEmptyCommand is returned for "*0" and "*-1" frames. The frame has been
	// consumed in full, so the stream stays in sync.
	ErrEmptyCommand = fmt.Errorf("%w: empty command", ErrProtocol)
)

// EntryKind identifies the variant held by an Entry.
type EntryKind uint8

const (
	KindInteger EntryKind = iota + 1
	KindBulk
	KindSimple
	KindNil
)

func (k EntryKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBulk:
		return "bulk"
	case KindSimple:
		return "simple"
	case KindNil:
		return "nil"
	default:
		return "unknown"
	}
}

// Entry is a single decoded protocol value. Integer and bulk entries come off
// the wire; simple and nil entries exist only in replies.
type Entry struct {
	Kind EntryKind
	Int  int32
	Text string
}

// Integer returns an integer entry.
func Integer(n int32) Entry { return Entry{Kind: KindInteger, Int: n} }

// Bulk returns a bulk string entry.
func Bulk(s string) Entry { return Entry{Kind: KindBulk, Text: s} }

// Simple returns a simple string entry.
func Simple(s string) Entry { return Entry{Kind: KindSimple, Text: s} }

// Nil returns the nil entry.
func Nil() Entry { return Entry{Kind: KindNil} }

// AsText returns the text of a bulk or simple entry.
func (e Entry) AsText() (string, bool) {
	switch e.Kind {
	case KindBulk, KindSimple:
		return e.Text, true
	default:
		return "", false
	}
}

// Encode renders the entry in wire form.
func (e Entry) Encode() string {
	var b strings.Builder
	e.writeTo(&b)
	return b.String()
}

func (e Entry) writeTo(b *strings.Builder) {
	switch e.Kind {
	case KindInteger:
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(int64(e.Int), 10))
		b.WriteString(CRLF)
	case KindBulk:
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(len(e.Text)))
		b.WriteString(CRLF)
		b.WriteString(e.Text)
		b.WriteString(CRLF)
	case KindSimple:
		b.WriteByte('+')
		b.WriteString(e.Text)
		b.WriteString(CRLF)
	default:
		b.WriteString("$-1\r\n")
	}
}

// Array is an ordered list of entries encoded with a "*<n>" prefix.
type Array []Entry

// Encode renders the array and each child in wire form.
func (a Array) Encode() string {
	var b strings.Builder
	b.WriteByte('*')
	b.WriteString(strconv.Itoa(len(a)))
	b.WriteString(CRLF)
	for _, e := range a {
		e.writeTo(&b)
	}
	return b.String()
}

// ErrorReply renders an error reply ("-<msg>\r\n").
func ErrorReply(msg string) string {
	return "-" + msg + CRLF
}

// DecodeFrame decodes one complete frame held in memory. Bytes left over after
// the frame are a protocol error.
func DecodeFrame(frame string) ([]Entry, error) {
	r := bufio.NewReader(strings.NewReader(frame))
	entries, err := ReadCommand(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty frame", ErrProtocol)
		}
		return nil, err
	}
	if r.Buffered() > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after frame", ErrProtocol, r.Buffered())
	}
	return entries, nil
}

// ReadCommand reads exactly one array frame from r.
//
// io.EOF is returned untouched when the stream ends cleanly before a frame
// starts. A stream that ends inside a frame yields ErrProtocol wrapping
// io.ErrUnexpectedEOF.
func ReadCommand(r *bufio.Reader) ([]Entry, error) {
	line, err := readLine(r, maxHeaderLen)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, truncated(err)
		}
		return nil, err
	}
	if len(line) < 2 || line[0] != '*' {
		return nil, fmt.Errorf("%w: expected array", ErrProtocol)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid array length", ErrProtocol)
	}
	if n <= 0 {
		return nil, ErrEmptyCommand
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		e, err := readElement(r)
		if err != nil {
			return nil, truncated(err)
		}
		out = append(out, e)
	}
	return out, nil
}

func readElement(r *bufio.Reader) (Entry, error) {
	line, err := readLine(r, maxHeaderLen)
	if err != nil {
		return Entry{}, err
	}
	if len(line) < 2 {
		return Entry{}, fmt.Errorf("%w: empty element header", ErrProtocol)
	}

	switch line[0] {
	case '$':
		return readBulkBody(r, line[1:])
	case ':':
		n, err := strconv.ParseInt(line[1:], 10, 32)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: invalid integer %q", ErrProtocol, line[1:])
		}
		return Integer(int32(n)), nil
	case '*':
		return Entry{}, fmt.Errorf("%w: nested arrays are not supported", ErrProtocol)
	default:
		return Entry{}, fmt.Errorf("%w: unexpected sigil %q", ErrProtocol, line[0])
	}
}

func readBulkBody(r *bufio.Reader, lenField string) (Entry, error) {
	n, err := strconv.Atoi(lenField)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n == -1 {
		return Nil(), nil
	}
	if n < 0 {
		return Entry{}, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n > MaxBulkLen {
		return Entry{}, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Entry{}, err
	}
	if !bytes.HasSuffix(buf, []byte(CRLF)) {
		return Entry{}, fmt.Errorf("%w: bulk length does not match payload", ErrProtocol)
	}
	return Bulk(string(buf[:n])), nil
}

// truncated maps an EOF inside a frame onto a protocol error.
func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated frame: %w", ErrProtocol, io.ErrUnexpectedEOF)
	}
	return err
}

func readLine(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > maxLen {
				return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
			}
			continue
		}
		if errors.Is(err, io.EOF) && len(buf)+len(frag) > 0 {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}

	if len(buf) > maxLen {
		return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
	}
	if len(buf) < 2 || !bytes.HasSuffix(buf, []byte(CRLF)) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}

	return string(buf[:len(buf)-2]), nil
}
