package attrvalue

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformed — дерево с неизвестным тегом или несоответствием тег/значение.
var ErrMalformed = errors.New("malformed record")

// Normalize превращает типизированное дерево в плоский документ.
// Детерминирована, без I/O; скаляры и map без потерь, списки сохраняют
// порядок. Глубина рекурсии ограничена только глубиной входа.
func Normalize(t Tree) (Document, error) {
	doc := make(Document, len(t))
	for field, v := range t {
		out, err := normalizeValue(v, field)
		if err != nil {
			return nil, err
		}
		doc[field] = out
	}
	return doc, nil
}

func normalizeValue(v Value, path string) (any, error) {
	tags := v.tags()
	if len(tags) != 1 {
		return nil, fmt.Errorf("%w: %s has %d tags, want 1", ErrMalformed, path, len(tags))
	}
	switch tags[0] {
	case "S":
		return *v.S, nil
	case "N":
		f, err := strconv.ParseFloat(*v.N, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: number %q", ErrMalformed, path, *v.N)
		}
		return f, nil
	case "BOOL":
		return *v.BOOL, nil
	case "L":
		out := make([]any, 0, len(v.L))
		for i, el := range v.L {
			nv, err := normalizeValue(el, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, nv)
		}
		return out, nil
	case "M":
		out := make(map[string]any, len(v.M))
		for k, el := range v.M {
			nv, err := normalizeValue(el, path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s: unknown tag %q", ErrMalformed, path, tags[0])
}
