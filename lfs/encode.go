package lfs

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Marshal encodes v as JSON and then drops, at every nesting level, each
// object member whose value is an empty string, null or an empty object.
// Array elements are never dropped. Member order is preserved.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	raw, _ := scrub(gjson.ParseBytes(data))

	return []byte(raw), nil
}

// scrub returns the compacted raw JSON of r and whether it should be kept
// when it is the value of an object member.
func scrub(r gjson.Result) (string, bool) {
	switch {
	case r.IsObject():
		var b strings.Builder
		b.WriteByte('{')

		members := 0
		r.ForEach(func(key, value gjson.Result) bool {
			raw, keep := scrub(value)
			if !keep {
				return true
			}

			if members > 0 {
				b.WriteByte(',')
			}
			b.WriteString(key.Raw)
			b.WriteByte(':')
			b.WriteString(raw)
			members++

			return true
		})

		b.WriteByte('}')

		return b.String(), members > 0

	case r.IsArray():
		var b strings.Builder
		b.WriteByte('[')

		i := 0
		r.ForEach(func(_, value gjson.Result) bool {
			raw, _ := scrub(value)
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(raw)
			i++

			return true
		})

		b.WriteByte(']')

		return b.String(), true

	case r.Type == gjson.Null:
		return "null", false

	case r.Type == gjson.String:
		return r.Raw, r.Str != ""
	}

	return r.Raw, true
}
