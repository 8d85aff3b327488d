// Package idgen issues stocktaking sheet codes.
package idgen

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
)

var _ stocktakingapp.CodeGenerator = (*SnowflakeCodes)(nil)

// SheetCodePrefix starts every sheet code
const SheetCodePrefix = "ST-"

// SnowflakeCodes generates "ST-<base36 snowflake>" codes. Codes are unique
// across server instances as long as every instance has its own node ID.
type SnowflakeCodes struct {
	node *snowflake.Node
}

// NewSnowflakeCodes creates a generator for node (0..1023)
func NewSnowflakeCodes(node int64) (*SnowflakeCodes, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("failed to init snowflake node %d: %w", node, err)
	}
	return &SnowflakeCodes{node: n}, nil
}

// NextSheetCode returns a new, roughly time-ordered sheet code
func (g *SnowflakeCodes) NextSheetCode() string {
	return SheetCodePrefix + strings.ToUpper(g.node.Generate().Base36())
}
