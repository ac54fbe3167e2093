package identity

import "time"

type Service interface {
    Identify() Model
}

type ServiceProvider struct {
    model Model
}

// NewService describes the running server: which node it is, where it listens
// and which build it runs.
func NewService(node, address string, port uint16, version string) Service {
    return &ServiceProvider{model: Model{
        Node:    node,
        Address: address,
        Port:    port,
        Version: version,
        Started: time.Now().UTC(),
    }}
}

func (sp ServiceProvider) Identify() Model {
    return sp.model
}

type Model struct {
    Node    string    `json:"node"`
    Address string    `json:"address"`
    Port    uint16    `json:"port"`
    Version string    `json:"version"`
    Started time.Time `json:"started"`
}
