// Package scanresult turns the output of wpa_supplicant's SCAN_RESULTS
// command into the JSON array served by the scan result characteristic.
//
// The output is written by hand instead of through encoding/json: SSIDs are
// arbitrary bytes, and the client expects invalid UTF-8 to be spelled out as
// 0xHH and everything outside printable ASCII to be \u escaped, none of which
// encoding/json does.
package scanresult

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// AccessPoint is one line of scan output.
type AccessPoint struct {
	// SSID holds the raw SSID bytes with the tool's escapes reversed.
	SSID string

	// RSSI is the signal level in dBm, as printed by the tool.
	RSSI string

	// MAC is the BSSID in colon separated hex.
	MAC string

	// Channel is the frequency column, as printed by the tool.
	Channel string
}

// bssid, frequency, signal level, flags, ssid
var lineRegexp = regexp.MustCompile(`(([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2})\t([0-9]+)\t(-?[0-9]+)\t((\[[a-zA-Z0-9+-]+\]))*\t([^\n]*)\n`)

// Parse extracts the access points from scan output in line order. Lines
// that do not match the expected layout are skipped.
func Parse(text string) []AccessPoint {
	aps := []AccessPoint{}

	for _, m := range lineRegexp.FindAllStringSubmatch(text, -1) {
		aps = append(aps, AccessPoint{
			SSID:    string(UnescapeHex(m[7])),
			RSSI:    m[4],
			MAC:     m[1],
			Channel: m[3],
		})
	}

	return aps
}

// Encode renders access points as a JSON array of objects with string
// values for ssid, rssi, mac and ch.
func Encode(aps []AccessPoint) string {
	var b strings.Builder

	b.WriteByte('[')

	for i, ap := range aps {
		if i > 0 {
			b.WriteByte(',')
		}

		fmt.Fprintf(&b, `{"ssid":"%s","rssi":"%s","mac":"%s","ch":"%s"}`,
			EscapeJSON(EscapeInvalidUnicode([]byte(ap.SSID))), ap.RSSI, ap.MAC, ap.Channel)
	}

	b.WriteByte(']')

	return b.String()
}

// ParseAccessPoints parses scan output and encodes it in one go.
func ParseAccessPoints(text string) string {
	return Encode(Parse(text))
}

// UnescapeHex reverses the \xHH and \\ escapes wpa_supplicant uses for
// SSID bytes that are not printable.
func UnescapeHex(s string) []byte {
	out := make([]byte, 0, len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			out = append(out, s[i])
			continue
		}

		if s[i+1] == '\\' {
			out = append(out, '\\')
			i++
			continue
		}

		if s[i+1] == 'x' && i+3 < len(s) && isHex(s[i+2]) && isHex(s[i+3]) {
			out = append(out, unhex(s[i+2])<<4|unhex(s[i+3]))
			i += 3
			continue
		}

		out = append(out, s[i])
	}

	return out
}

// EscapeInvalidUnicode decodes b as UTF-8 and replaces every byte that is
// not part of a valid sequence by its 0xHH spelling.
func EscapeInvalidUnicode(b []byte) string {
	var sb strings.Builder

	sb.Grow(len(b) * 2)

	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&sb, "0x%02X", b[0])
		} else {
			sb.Write(b[:size])
		}

		b = b[size:]
	}

	return sb.String()
}

// EscapeJSON escapes s for use inside a JSON string. Everything outside
// printable ASCII is written as \u escapes, code points above the basic
// multilingual plane as surrogate pairs.
func EscapeJSON(s string) string {
	var sb strings.Builder

	sb.Grow(len(s) * 2)

	for _, c := range s {
		switch {
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '\b':
			sb.WriteString(`\b`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\f':
			sb.WriteString(`\f`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < ' ':
			fmt.Fprintf(&sb, `\u00%02X`, c)
		case c >= 0x10000:
			u := c - 0x10000
			fmt.Fprintf(&sb, `\u%04X\u%04X`, 0xD800+(u>>10), 0xDC00+(u&0x3FF))
		case c > '~':
			fmt.Fprintf(&sb, `\u%04X`, c)
		default:
			sb.WriteRune(c)
		}
	}

	return sb.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
