// Package registry resolves the set of validators a client coordinator
// should connect to: their stable index, public key, and request socket.
package registry

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chainbound/dato/blssig"
	"github.com/chainbound/dato/common"
)

// Info describes one registered validator.
type Info struct {
	Index      int
	PublicKey  blssig.PublicKey
	RequestURL string
}

// Identity returns the common.ValidatorIdentity view of this entry.
func (i Info) Identity() common.ValidatorIdentity {
	return common.ValidatorIdentity{Index: i.Index, PublicKey: i.PublicKey}
}

// Provider discovers the set of validators in the network.
type Provider interface {
	ValidatorCount() (int, error)
	AllValidators() ([]Info, error)
}

// FileProvider reads validator registrations from a flat file: one
// validator per line, comma-separated `index,pubkeyHex,requestURL`. It
// caches the parsed result for the lifetime of the Provider.
type FileProvider struct {
	Path       string
	validators []Info
}

// NewFileProvider parses path immediately, returning an error on any
// malformed line.
func NewFileProvider(path string) (*FileProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("registry: opening %s: %w", path, err)
	}
	defer f.Close()

	var validators []Info
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("registry: %s:%d: expected 3 fields, got %d", path, lineNo, len(parts))
		}

		index, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("registry: %s:%d: invalid index: %w", path, lineNo, err)
		}
		pubkeyBytes, err := decodeHex(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("registry: %s:%d: invalid public key: %w", path, lineNo, err)
		}
		if len(pubkeyBytes) != blssig.PublicKeyLength {
			return nil, fmt.Errorf("registry: %s:%d: public key must be %d bytes, got %d",
				path, lineNo, blssig.PublicKeyLength, len(pubkeyBytes))
		}
		var pubkey blssig.PublicKey
		copy(pubkey[:], pubkeyBytes)

		validators = append(validators, Info{
			Index:      index,
			PublicKey:  pubkey,
			RequestURL: strings.TrimSpace(parts[2]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("registry: reading %s: %w", path, err)
	}

	return &FileProvider{Path: path, validators: validators}, nil
}

// ValidatorCount returns the number of registered validators.
func (p *FileProvider) ValidatorCount() (int, error) { return len(p.validators), nil }

// AllValidators returns every registered validator.
func (p *FileProvider) AllValidators() ([]Info, error) {
	out := make([]Info, len(p.validators))
	copy(out, p.validators)
	return out, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
