package storage

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/gtfsload/internal/core"
)

// appendCopyText appends v to buf in COPY text format. Strings are expected
// to be escaped already.
func appendCopyText(buf *bytes.Buffer, v any) error {
	switch v := v.(type) {
	case nil:
		buf.WriteString(core.SQLNull)
	case string:
		buf.WriteString(v)
	case int16:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int:
		buf.WriteString(strconv.Itoa(v))
	case float64:
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case []string:
		// Array quoting adds backslashes that COPY would consume.
		buf.WriteString(strings.ReplaceAll(arrayLiteral(v), `\`, `\\`))
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

// arrayLiteral renders a Postgres text array literal.
func arrayLiteral(items []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		item = strings.ReplaceAll(item, `\`, `\\`)
		b.WriteString(strings.ReplaceAll(item, `"`, `\"`))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// bindValue converts v for parameter binding. joinArrays flattens string
// lists for backends without array columns.
func bindValue(v any, joinArrays bool) any {
	switch v := v.(type) {
	case string:
		return core.UnescapeCopyText(v)
	case []string:
		if joinArrays {
			return strings.Join(v, ",")
		}
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = core.UnescapeCopyText(s)
		}
		return out
	default:
		return v
	}
}
