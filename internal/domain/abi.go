package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// ABIParam is one typed parameter of a function, event, error or constructor.
type ABIParam struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	InternalType string     `json:"internalType,omitempty"`
	Indexed      bool       `json:"indexed,omitempty"`
	Components   []ABIParam `json:"components,omitempty"`
}

// ABIEntry is a single descriptor in a contract ABI.
type ABIEntry struct {
	Type            string     `json:"type"`
	Name            string     `json:"name,omitempty"`
	Inputs          []ABIParam `json:"inputs,omitempty"`
	Outputs         []ABIParam `json:"outputs,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
	Anonymous       bool       `json:"anonymous,omitempty"`
}

// ABI is an ordered list of descriptors. Order is preserved from the source
// document; merging relies on it for precedence.
type ABI []ABIEntry

// ParseABI decodes a JSON ABI string into an ordered entry list.
// The input must be a JSON array; anything else is an error.
func ParseABI(raw string) (ABI, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("ABI is not a JSON array")
	}

	var entries ABI
	if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return entries, nil
}

// MarshalString encodes the ABI back to its canonical JSON form.
func (a ABI) MarshalString() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to encode ABI: %w", err)
	}
	return string(data), nil
}

// canonicalType returns the type string used in canonical signatures.
// Tuples are expanded to their component types, keeping any array suffix,
// e.g. tuple[2] with (address,uint256) components -> (address,uint256)[2].
func canonicalType(p ABIParam) string {
	if !strings.HasPrefix(p.Type, "tuple") {
		return p.Type
	}

	inner := make([]string, len(p.Components))
	for i, c := range p.Components {
		inner[i] = canonicalType(c)
	}
	suffix := strings.TrimPrefix(p.Type, "tuple")
	return "(" + strings.Join(inner, ",") + ")" + suffix
}

// inputTypes renders the parenthesized input type list of an entry.
func inputTypes(params []ABIParam) string {
	types := make([]string, len(params))
	for i, p := range params {
		types[i] = canonicalType(p)
	}
	return "(" + strings.Join(types, ",") + ")"
}

// Signature returns the canonical signature, e.g. Transfer(address,address,uint256).
func (e ABIEntry) Signature() string {
	return e.Name + inputTypes(e.Inputs)
}

// MergeKey returns the uniqueness key used when combining two ABIs.
// Functions, events and errors key on kind:name(inputTypes); a constructor
// keys on its input types; receive and fallback key on kind alone.
// Output types are deliberately not part of the key.
func (e ABIEntry) MergeKey() string {
	switch e.Type {
	case "receive", "fallback":
		return e.Type
	case "constructor":
		return "constructor" + inputTypes(e.Inputs)
	default:
		return e.Type + ":" + e.Signature()
	}
}

// EventSignature describes one event derivable from an ABI: its canonical
// signature string, the 32-byte topic hash and the 4-byte selector prefix.
type EventSignature struct {
	Name      string     `json:"name"`
	Signature string     `json:"signature"`
	Hash      string     `json:"hash"`
	Selector  string     `json:"selector"`
	Inputs    []ABIParam `json:"inputs"`
}

// ExtractEventSignatures derives the event signatures present in an ABI,
// in entry order, de-duplicated by topic hash.
func ExtractEventSignatures(a ABI) []EventSignature {
	seen := make(map[string]struct{})
	var sigs []EventSignature

	for _, entry := range a {
		if entry.Type != "event" {
			continue
		}
		sig := entry.Signature()
		hash := crypto.Keccak256Hash([]byte(sig))
		hexHash := hash.Hex()
		if _, ok := seen[hexHash]; ok {
			continue
		}
		seen[hexHash] = struct{}{}
		sigs = append(sigs, EventSignature{
			Name:      entry.Name,
			Signature: sig,
			Hash:      hexHash,
			Selector:  hexHash[:10],
			Inputs:    entry.Inputs,
		})
	}
	return sigs
}
