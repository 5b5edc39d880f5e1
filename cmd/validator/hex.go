package main

import (
	"encoding/hex"
	"strings"
)

func hexDecode(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

func hexEncode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
