package util

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// HashAlertKey creates an MD5 hash from the visible alert fields, used to dedupe
// entries that arrive without a store-assigned id.
func HashAlertKey(source, title, timestamp, message string) string {
	builder := strings.Builder{}
	builder.WriteString(strings.TrimSpace(strings.ToLower(source)))
	builder.WriteString("|")
	builder.WriteString(strings.TrimSpace(strings.ToLower(title)))
	builder.WriteString("|")
	builder.WriteString(strings.TrimSpace(timestamp))
	builder.WriteString("|")
	builder.WriteString(strings.TrimSpace(strings.ToLower(message)))
	return hashString(builder.String())
}

func hashString(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}
