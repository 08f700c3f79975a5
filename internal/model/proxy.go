package model

// ClashProxy is a single entry of the Clash "proxies" list.
//
// Field order is the JSON key order of the rendered flow mapping; do not
// reorder without expecting every generated file to change.
type ClashProxy struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Server  string `json:"server"`
	Port    int    `json:"port"`
	UUID    string `json:"uuid"`
	AlterID int    `json:"alterId"`
	Cipher  string `json:"cipher"`
	TLS     bool   `json:"tls"`
	Network string `json:"network"`
	Path    string `json:"path"`
	WSOpts  WSOpts `json:"ws-opts"`
}

// WSOpts marshals to {} when Path is empty.
type WSOpts struct {
	Path    string     `json:"path,omitempty"`
	Headers *WSHeaders `json:"headers,omitempty"`
}

type WSHeaders struct {
	Host string `json:"host"`
}
