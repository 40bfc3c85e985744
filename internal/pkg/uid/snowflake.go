package uid

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ErrNoNodeIdentity is returned when neither /etc/machine-id nor the hostname
// is available to derive a snowflake node.
var ErrNoNodeIdentity = errors.New("uid: cannot determine node identity")

// Snowflake generates 63-bit ids: 41 bits of milliseconds, 10 bits of node,
// 12 bits of sequence.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake derives the node number from the machine identity so replicas
// on different hosts do not collide.
func NewSnowflake() (*Snowflake, error) {
	src, err := nodeIdentity()
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(src))
	nodeID := int64(binary.BigEndian.Uint16(sum[:2]) % (1 << snowflake.NodeBits))

	return NewSnowflakeWithNode(nodeID)
}

// NewSnowflakeWithNode uses an explicit node number in [0, 1023].
func NewSnowflakeWithNode(nodeID int64) (*Snowflake, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("uid: snowflake node %d: %w", nodeID, err)
	}

	return &Snowflake{node: node}, nil
}

// Generate returns the next id.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

func nodeIdentity() (string, error) {
	if b, err := os.ReadFile("/etc/machine-id"); err == nil {
		if s := strings.TrimSpace(string(b)); s != "" {
			return s, nil
		}
	}

	if h, err := os.Hostname(); err == nil {
		if h = strings.TrimSpace(h); h != "" {
			return h, nil
		}
	}

	return "", ErrNoNodeIdentity
}
