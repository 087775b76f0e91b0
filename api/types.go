package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// DefaultClientPort is the IAX2 port assumed when a registration omits "port".
	DefaultClientPort = 4569

	// RefreshInterval is the re-registration interval, in seconds, handed back to clients.
	RefreshInterval = 60

	// RegisteredMessage is the "data" value of a successful registration response.
	RegisteredMessage = "successfully registered"
)

// RegistrationRequest is the body a node POSTs to register itself.
//
//	{"port": 4569, "data": {"nodes": {"<node_id>": {"node": "...", "passwd": "...", "remote": 0}}}}
type RegistrationRequest struct {
	// Port is the client's declared port. Nil means DefaultClientPort.
	Port *int `json:"port,omitempty"`

	Data *RegistrationData `json:"data,omitempty"`
}

// ClientPort returns the declared port or DefaultClientPort.
func (r *RegistrationRequest) ClientPort() int {
	if r.Port == nil {
		return DefaultClientPort
	}
	return *r.Port
}

// Nodes returns the submitted nodes, never nil.
func (r *RegistrationRequest) Nodes() *NodeSet {
	if r.Data == nil || r.Data.Nodes == nil {
		return &NodeSet{}
	}
	return r.Data.Nodes
}

type RegistrationData struct {
	Nodes *NodeSet `json:"nodes,omitempty"`
}

// UnmarshalJSON only honours the exact "port" and "data" keys.
func (r *RegistrationRequest) UnmarshalJSON(b []byte) error {
	fields, err := exactFields(b)
	if err != nil {
		return err
	}
	if err := decodeField(fields, "port", &r.Port); err != nil {
		return err
	}
	return decodeField(fields, "data", &r.Data)
}

func (d *RegistrationData) UnmarshalJSON(b []byte) error {
	fields, err := exactFields(b)
	if err != nil {
		return err
	}
	return decodeField(fields, "nodes", &d.Nodes)
}

// NodeInfo is the per-node part of a registration. Absent fields keep their
// zero values, which are also the registration defaults.
type NodeInfo struct {
	Node   string `json:"node"`
	Passwd string `json:"passwd"`
	Remote int    `json:"remote"`
}

func (n *NodeInfo) UnmarshalJSON(b []byte) error {
	fields, err := exactFields(b)
	if err != nil {
		return err
	}
	if err := decodeField(fields, "node", &n.Node); err != nil {
		return err
	}
	if err := decodeField(fields, "passwd", &n.Passwd); err != nil {
		return err
	}
	return decodeField(fields, "remote", &n.Remote)
}

// exactFields splits a JSON object into its members. Unlike struct decoding,
// keys are later looked up case-sensitively, so "PORT" is not "port".
// A JSON null yields no fields.
func exactFields(b []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	return nil
}

// NodeSet is a JSON object of node id -> NodeInfo that remembers the order in
// which ids were first submitted. A repeated id keeps its first position and
// takes the last value.
type NodeSet struct {
	ids   []string
	nodes map[string]NodeInfo
}

func NewNodeSet() *NodeSet {
	return &NodeSet{nodes: make(map[string]NodeInfo)}
}

// Add inserts or replaces the entry for id.
func (s *NodeSet) Add(id string, info NodeInfo) {
	if s.nodes == nil {
		s.nodes = make(map[string]NodeInfo)
	}
	if _, seen := s.nodes[id]; !seen {
		s.ids = append(s.ids, id)
	}
	s.nodes[id] = info
}

// IDs returns node ids in submission order.
func (s *NodeSet) IDs() []string {
	return append([]string(nil), s.ids...)
}

func (s *NodeSet) Get(id string) (NodeInfo, bool) {
	info, ok := s.nodes[id]
	return info, ok
}

func (s *NodeSet) Len() int {
	return len(s.ids)
}

// UnmarshalJSON decodes an object token by token to keep the submission order.
func (s *NodeSet) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = NodeSet{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("nodes must be a JSON object")
	}

	*s = *NewNodeSet()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected node key %v", keyTok)
		}

		var info *NodeInfo
		if err := dec.Decode(&info); err != nil {
			return fmt.Errorf("node %q: %w", id, err)
		}
		if info == nil {
			return fmt.Errorf("node %q: entry must be a JSON object", id)
		}
		s.Add(id, *info)
	}

	// closing '}'
	_, err = dec.Token()
	return err
}

// MarshalJSON writes the nodes in submission order.
func (s *NodeSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(s.nodes[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RegistrationResponse is returned on a successful registration.
type RegistrationResponse struct {
	// IPAddr is the address the server saw the request come from.
	IPAddr string `json:"ipaddr"`

	Port int `json:"port"`

	// Refresh is how often, in seconds, the node should re-register.
	Refresh int `json:"refresh"`

	Data string `json:"data"`
}

// RegistrationRecord is what the server keeps per registered node id.
type RegistrationRecord struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Remote   int    `json:"remote"`
}

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Registrations map[string]RegistrationRecord `json:"registrations"`

	// TotalCount counts processed submissions, overwrites included.
	TotalCount int `json:"total_count"`
}

// ErrorResponse is the body of every non-200 response.
type ErrorResponse struct {
	Error string `json:"error"`
}
