package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// VMessNode is one parsed vmess:// descriptor.
//
// Cipher is filled from the "net" field, not from the vmess encryption
// method. Clash output overrides it with "auto" anyway; the value is kept
// so the parsed record stays faithful to what the subscription produced.
type VMessNode struct {
	Type    string
	Name    string
	Server  string
	Port    int
	UUID    string
	AlterID int
	Cipher  string
	Network string
	TLS     TLSValue
	Path    string
	Host    string
}

// TLSValue keeps the raw "tls" field of a vmess descriptor. Subscriptions
// put either a string ("tls", "none", "") or a boolean there.
type TLSValue struct {
	Str    string
	Bool   bool
	IsBool bool
	Set    bool
}

// Enabled reports whether the descriptor carried the string "tls".
// A boolean true does not count: the Clash output only switches TLS on for
// the string form.
func (v TLSValue) Enabled() bool {
	return v.Set && !v.IsBool && v.Str == "tls"
}

func (v *TLSValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = TLSValue{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = TLSValue{Str: s, Set: true}
		return nil
	}
	var x bool
	if err := json.Unmarshal(b, &x); err == nil {
		*v = TLSValue{Bool: x, IsBool: true, Set: true}
		return nil
	}
	return fmt.Errorf("tls: want string or bool, got %s", truncateRaw(b))
}

func (v TLSValue) String() string {
	switch {
	case !v.Set:
		return ""
	case v.IsBool:
		return fmt.Sprint(v.Bool)
	default:
		return v.Str
	}
}

func truncateRaw(b []byte) string {
	if len(b) > 32 {
		return string(b[:32]) + "..."
	}
	return string(b)
}
