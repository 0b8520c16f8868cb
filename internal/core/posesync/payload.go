package posesync

import (
	"fmt"
	"strings"
)

func tagged(clientID, value string) []byte {
	return []byte(clientID + "|" + value)
}

// untag splits a "<clientId>|<value>" payload.
func untag(payload []byte) (string, string, error) {
	id, value, ok := strings.Cut(string(payload), "|")
	if !ok || id == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedPayload, payload)
	}
	return id, value, nil
}

func vrFlag(isVR bool) string {
	if isVR {
		return "1"
	}
	return "0"
}
