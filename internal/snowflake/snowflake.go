package snowflake

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var node *snowflake.Node

// Init sets up the generator. nodeID must be in 0-1023.
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	node = n
	return nil
}

// NextID generates a new unique snowflake ID.
func NextID() int64 {
	if node == nil {
		// Lazily fall back to node 0 so tests and tools need no setup.
		if err := Init(0); err != nil {
			panic(err)
		}
	}
	return node.Generate().Int64()
}

// FormatID renders an ID the way the API exposes it.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseID parses a positive decimal ID.
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
