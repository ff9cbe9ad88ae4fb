package attrvalue

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Value — один узел провайдерского типизированного дерева атрибутов.
// Инвариант: заполнен ровно один тег.
type Value struct {
	S    *string
	N    *string // числа приходят строками, как в исходном фиде
	BOOL *bool
	L    []Value
	M    map[string]Value

	hasL bool
	hasM bool
}

// Tree — образ записи: имя поля -> типизированное значение.
type Tree map[string]Value

// Document — плоский документ после нормализации.
type Document map[string]any

func String(s string) Value { return Value{S: &s} }
func Number(n string) Value { return Value{N: &n} }
func Bool(b bool) Value     { return Value{BOOL: &b} }
func List(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{L: vs, hasL: true}
}
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{M: m, hasM: true}
}

// tags возвращает список заполненных тегов.
func (v Value) tags() []string {
	var t []string
	if v.S != nil {
		t = append(t, "S")
	}
	if v.N != nil {
		t = append(t, "N")
	}
	if v.BOOL != nil {
		t = append(t, "BOOL")
	}
	if v.hasL || v.L != nil {
		t = append(t, "L")
	}
	if v.hasM || v.M != nil {
		t = append(t, "M")
	}
	return t
}

// UnmarshalJSON декодирует узел строго: ровно один тег, неизвестные теги —
// ошибка (fail closed).
func (v *Value) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: attribute node is not an object", ErrMalformed)
	}
	if len(m) != 1 {
		return fmt.Errorf("%w: attribute node has %d tags, want 1", ErrMalformed, len(m))
	}
	for tag, raw := range m {
		switch tag {
		case "S":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("%w: tag S: %v", ErrMalformed, err)
			}
			v.S = &s
		case "N":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("%w: tag N: %v", ErrMalformed, err)
			}
			v.N = &s
		case "BOOL":
			var b bool
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("%w: tag BOOL: %v", ErrMalformed, err)
			}
			v.BOOL = &b
		case "L":
			var l []Value
			if err := json.Unmarshal(raw, &l); err != nil {
				return err
			}
			if l == nil {
				l = []Value{}
			}
			v.L = l
			v.hasL = true
		case "M":
			var mm map[string]Value
			if err := json.Unmarshal(raw, &mm); err != nil {
				return err
			}
			if mm == nil {
				mm = map[string]Value{}
			}
			v.M = mm
			v.hasM = true
		default:
			return fmt.Errorf("%w: unknown attribute tag %q", ErrMalformed, tag)
		}
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.S != nil:
		return json.Marshal(map[string]string{"S": *v.S})
	case v.N != nil:
		return json.Marshal(map[string]string{"N": *v.N})
	case v.BOOL != nil:
		return json.Marshal(map[string]bool{"BOOL": *v.BOOL})
	case v.hasL || v.L != nil:
		return json.Marshal(map[string][]Value{"L": v.L})
	case v.hasM || v.M != nil:
		return json.Marshal(map[string]map[string]Value{"M": v.M})
	}
	return nil, fmt.Errorf("%w: attribute node has no tag", ErrMalformed)
}

// DecodeTree парсит сырой JSON-образ фида в дерево.
func DecodeTree(raw []byte) (Tree, error) {
	var t Tree
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode attribute tree: %w", err)
	}
	return t, nil
}

// Fields возвращает имена полей дерева в стабильном порядке.
func (t Tree) Fields() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// String читает строковое поле документа; пустая строка, если поля нет
// или тип другой.
func (d Document) String(field string) string {
	if v, ok := d[field].(string); ok {
		return v
	}
	return ""
}

// Float читает числовое поле документа.
func (d Document) Float(field string) float64 {
	if v, ok := d[field].(float64); ok {
		return v
	}
	return 0
}
