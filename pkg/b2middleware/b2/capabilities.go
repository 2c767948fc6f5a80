package b2

import (
	"encoding/json"
	"io"
	"strings"
)

// Capabilities is a bitmask of capabilities
type Capabilities uint

const (
	CapListKeys Capabilities = 1 << iota
	CapWriteKeys
	CapDeleteKeys
	CapListBuckets
	CapListAllBucketNames
	CapReadBuckets
	CapWriteBuckets
	CapDeleteBuckets
	CapListFiles
	CapReadFiles
	CapShareFiles
	CapWriteFiles
	CapDeleteFiles
)

var str2cap map[string]Capabilities

var captable = []struct {
	cap  Capabilities
	name string
}{
	{CapListKeys, "listKeys"},
	{CapWriteKeys, "writeKeys"},
	{CapDeleteKeys, "deleteKeys"},
	{CapListBuckets, "listBuckets"},
	{CapListAllBucketNames, "listAllBucketNames"},
	{CapReadBuckets, "readBuckets"},
	{CapWriteBuckets, "writeBuckets"},
	{CapDeleteBuckets, "deleteBuckets"},
	{CapListFiles, "listFiles"},
	{CapReadFiles, "readFiles"},
	{CapShareFiles, "shareFiles"},
	{CapWriteFiles, "writeFiles"},
	{CapDeleteFiles, "deleteFiles"},
}

func init() {
	str2cap = make(map[string]Capabilities, len(captable))
	for i := range captable {
		str2cap[captable[i].name] = captable[i].cap
	}
}

func (c Capabilities) write(w io.Writer) {
	written := 0
	for i := range captable {
		if c&captable[i].cap != 0 {
			if written != 0 {
				io.WriteString(w, ",")
			}
			io.WriteString(w, captable[i].name)
			written++
		}
	}
}

// String implements fmt.Stringer
//
// Capability strings are represented as
// a comma-separated list of capabilities,
// e.g. "readFiles,shareFiles"
func (c Capabilities) String() string {
	if c == 0 {
		return "(unknown)"
	}
	var str strings.Builder
	c.write(&str)
	return str.String()
}

// Has reports whether every capability in want is present.
// A zero Capabilities means unknown and has nothing.
func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

// UnmarshalJSON implements json.Unmarshaler.
// Capability names this package does not know are ignored;
// B2 adds new ones over time.
func (c *Capabilities) UnmarshalJSON(buf []byte) error {
	var caps []string
	if err := json.Unmarshal(buf, &caps); err != nil {
		return err
	}
	*c = 0
	for _, s := range caps {
		*c |= str2cap[s]
	}
	return nil
}
