package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object: JSON-объект, в котором нетронутые поля хранятся как есть (RawMessage).
// Повторная сериализация не теряет ничего, кроме порядка ключей (ключи сортируются).
type Object map[string]json.RawMessage

// ParseObject разбирает JSON-объект. null даёт пустой Object.
func ParseObject(b []byte) (Object, error) {
	o := Object{}
	if len(bytes.TrimSpace(b)) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return o, nil
	}
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, err
	}
	if o == nil {
		o = Object{}
	}
	return o, nil
}

func (o Object) Has(key string) bool {
	v, ok := o[key]
	return ok && !isNull(v)
}

// Decode распаковывает поле key в v. false, если поля нет (или оно null).
func (o Object) Decode(key string, v any) (bool, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("field %q: %w", key, err)
	}
	return true, nil
}

// Set кладёт v в поле key.
func (o Object) Set(key string, v any) error {
	if raw, ok := v.(json.RawMessage); ok {
		o[key] = raw
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	o[key] = b
	return nil
}

func (o Object) Delete(keys ...string) {
	for _, k := range keys {
		delete(o, k)
	}
}

// String возвращает строковое поле; для отсутствующего или нестрокового поля "".
func (o Object) String(key string) string {
	var s string
	if ok, err := o.Decode(key, &s); !ok || err != nil {
		return ""
	}
	return s
}

// Object возвращает вложенный объект. Изменения вложенного объекта
// нужно вернуть обратно через Set.
func (o Object) Object(key string) (Object, bool, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil, false, nil
	}
	sub, err := ParseObject(raw)
	if err != nil {
		return nil, true, fmt.Errorf("field %q: %w", key, err)
	}
	return sub, true, nil
}

// Objects возвращает массив объектов из поля key.
func (o Object) Objects(key string) ([]Object, bool, error) {
	var out []Object
	ok, err := o.Decode(key, &out)
	return out, ok, err
}

// Keys: ключи объекта в порядке документа (для «первого» элемента).
func Keys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected JSON object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		k, _ := tok.(string)
		keys = append(keys, k)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
