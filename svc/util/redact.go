package util

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"regexp"
)

var dataParamPattern = regexp.MustCompile(`([?&]data=)[^&\s]+`)

// RedactContent keeps only the edges of user content for log lines.
func RedactContent(content string) string {
	if len(content) == 0 {
		return ""
	}
	if len(content) <= 20 {
		return "[REDACTED]"
	}
	return content[:10] + "...[REDACTED]..." + content[len(content)-10:]
}

// RedactURL drops embedded share payloads from a URL before it is logged.
func RedactURL(u string) string {
	return dataParamPattern.ReplaceAllString(u, "${1}[REDACTED]")
}

func RedactIP(ip string) string {
	host, _, err := net.SplitHostPort(ip)
	if err == nil {
		ip = host
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		hash := sha256.Sum256([]byte(ip))
		return "hash:" + hex.EncodeToString(hash[:8])
	}
	if ipv4 := parsed.To4(); ipv4 != nil {
		ipv4[3] = 0
		return ipv4.String()
	}
	ipv6 := parsed.To16()
	for i := 4; i < 16; i++ {
		ipv6[i] = 0
	}
	return ipv6.String()
}
