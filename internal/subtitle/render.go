package subtitle

import (
	"strconv"
	"strings"
)

const crlf = "\r\n"

// RenderSRT produces SubRip text from blocks. Blocks are ordered by id
// without renumbering, timestamps are normalized, line breaks are CRLF and
// the output ends with a blank line. No blocks renders as "".
func RenderSRT(blocks []Block) string {
	if len(blocks) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, block := range SortedBlocks(blocks) {
		if i > 0 {
			sb.WriteString(crlf + crlf)
		}
		sb.WriteString(strconv.Itoa(block.ID))
		sb.WriteString(crlf)
		sb.WriteString(NormalizeTimestamp(block.StartTime))
		sb.WriteString(" --> ")
		sb.WriteString(NormalizeTimestamp(block.EndTime))
		sb.WriteString(crlf)
		sb.WriteString(block.Text)
	}
	sb.WriteString(crlf + crlf)

	return sb.String()
}
