package repl

import (
	"errors"
	"fmt"

	"mrkv-repl/pkg/common"
)

var errStoreNotRunning = errors.New("repl: store not running or not found")

// errLine formats a protocol-visible common.Err as the "-ERR <code>[:
// detail]" line the wire client expects, the same "-ERR <code>" shape the
// teacher's ShardKV/ShardMaster RPC replies use for their Err field.
func errLine(code common.Err, detail string) string {
	if detail == "" {
		return "-ERR " + string(code)
	}
	return fmt.Sprintf("-ERR %s: %s", code, detail)
}
