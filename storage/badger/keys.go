package badger

import (
	"strings"

	"github.com/poiesic/flowrun/storage"
)

// Key prefixes for different data types
const (
	recordPrefix = "rec"
	flowPrefix   = "flow"
	flowIDSeq    = "flowseq"
)

// makeRecordKey generates a key for a record.
// Format: rec:table:id
func makeRecordKey(table, id string) []byte {
	return []byte(recordPrefix + ":" + table + ":" + id)
}

// makeTablePrefix generates the prefix shared by every record of a table.
func makeTablePrefix(table string) []byte {
	return []byte(recordPrefix + ":" + table + ":")
}

// makeFlowKey generates a key for a flow descriptor by name.
func makeFlowKey(name string) []byte {
	return []byte(flowPrefix + ":" + name)
}

// makeFlowPrefix generates the prefix shared by every flow descriptor.
func makeFlowPrefix() []byte {
	return []byte(flowPrefix + ":")
}

// checkTable rejects table names that would make record keys ambiguous.
func checkTable(table string) error {
	if strings.Contains(table, ":") {
		return storage.ErrInvalidTableName
	}
	return nil
}
