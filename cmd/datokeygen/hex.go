package main

import "encoding/hex"

func hexEncode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
