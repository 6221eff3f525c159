// Package p4values converts user-facing values (numbers, MAC and IPv4
// text, raw byte strings) into the fixed-width big-endian byte strings
// the P4Runtime wire format expects.
package p4values

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// EncodingError reports a value that cannot be encoded against a field's
// declared bitwidth.
type EncodingError struct {
	Reason string
}

func (e EncodingError) Error() string {
	return "p4values: " + e.Reason
}

var (
	macPattern  = regexp.MustCompile(`^([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}$`)
	ipv4Pattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
)

// BitwidthToBytes returns the number of bytes needed to hold bitwidth bits.
func BitwidthToBytes(bitwidth int) int {
	return (bitwidth + 7) / 8
}

// EncodeNum encodes v as exactly ceil(bitwidth/8) big-endian bytes.
func EncodeNum(v uint64, bitwidth int) ([]byte, error) {
	if bitwidth <= 0 || bitwidth > 64 {
		return nil, EncodingError{Reason: fmt.Sprintf("invalid bitwidth %d", bitwidth)}
	}
	if bitwidth < 64 && v >= 1<<uint(bitwidth) {
		return nil, EncodingError{Reason: fmt.Sprintf("number %d does not fit in %d bits", v, bitwidth)}
	}
	out := make([]byte, BitwidthToBytes(bitwidth))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out, nil
}

// DecodeNum interprets the full byte string as a big-endian unsigned integer.
func DecodeNum(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func IsMac(s string) bool {
	return macPattern.MatchString(s)
}

func EncodeMac(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.ReplaceAll(s, ":", ""))
	if err != nil {
		return nil, EncodingError{Reason: fmt.Sprintf("bad mac %q", s)}
	}
	return raw, nil
}

func DecodeMac(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	return strings.Join(parts, ":")
}

func IsIPv4(s string) bool {
	return ipv4Pattern.MatchString(s)
}

func EncodeIPv4(s string) ([]byte, error) {
	out := make([]byte, 4)
	for i, part := range strings.Split(s, ".") {
		n, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return nil, EncodingError{Reason: fmt.Sprintf("bad ipv4 address %q", s)}
		}
		out[i] = byte(n)
	}
	return out, nil
}

func DecodeIPv4(b []byte) string {
	if len(b) != 4 {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

// Encode infers the shape of x and produces exactly ceil(bitwidth/8)
// bytes. A one-element []any is unwrapped first. Strings are tried as
// MAC text, then dotted-quad IPv4, and otherwise passed through as an
// already-encoded raw byte string. Integers are range-checked against
// bitwidth.
func Encode(x any, bitwidth int) ([]byte, error) {
	if list, ok := x.([]any); ok && len(list) == 1 {
		x = list[0]
	}
	byteLen := BitwidthToBytes(bitwidth)

	var encoded []byte
	var err error
	switch v := x.(type) {
	case string:
		switch {
		case IsMac(v):
			encoded, err = EncodeMac(v)
		case IsIPv4(v):
			encoded, err = EncodeIPv4(v)
		default:
			encoded = []byte(v)
		}
	case []byte:
		encoded = v
	case uint64:
		encoded, err = EncodeNum(v, bitwidth)
	case uint32:
		encoded, err = EncodeNum(uint64(v), bitwidth)
	case uint:
		encoded, err = EncodeNum(uint64(v), bitwidth)
	case int:
		if v < 0 {
			return nil, EncodingError{Reason: fmt.Sprintf("negative value %d", v)}
		}
		encoded, err = EncodeNum(uint64(v), bitwidth)
	case int64:
		if v < 0 {
			return nil, EncodingError{Reason: fmt.Sprintf("negative value %d", v)}
		}
		encoded, err = EncodeNum(uint64(v), bitwidth)
	default:
		return nil, EncodingError{Reason: fmt.Sprintf("encoding values of type %T is not supported", x)}
	}
	if err != nil {
		return nil, err
	}
	if len(encoded) != byteLen {
		return nil, EncodingError{Reason: fmt.Sprintf(
			"encoded length %d does not match bitwidth %d (want %d bytes)", len(encoded), bitwidth, byteLen)}
	}
	return encoded, nil
}
