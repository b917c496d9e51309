// Package legacy содержит форматы данных старого клиента: туннелирование идентификаторов
// в UUID-строках и XOR-конверт запросов.
package legacy

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxID наибольший идентификатор, который помещается в UUID-форму
const MaxID = 1<<32 - 1

// ParseID принимает идентификатор в десятичной или UUID-форме.
// В UUID-форме старшие 16 бит лежат в первом поле, младшие 16 бит в третьем.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty id")
	}

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id < 0 {
			return 0, fmt.Errorf("negative id %d", id)
		}
		return id, nil
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("id %q is neither decimal nor uuid: %w", s, err)
	}

	high := binary.BigEndian.Uint32(u[0:4])
	if high > 0xFFFF {
		return 0, fmt.Errorf("id %q: first field overflows 16 bits", s)
	}
	low := binary.BigEndian.Uint16(u[6:8])

	return int64(high)<<16 | int64(low), nil
}

// FormatUUID кодирует идентификатор в UUID-форму старого клиента
func FormatUUID(id int64) (string, error) {
	if id < 0 || id > MaxID {
		return "", fmt.Errorf("id %d does not fit into 32 bits", id)
	}

	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], uint32(id>>16))
	binary.BigEndian.PutUint16(u[6:8], uint16(id&0xFFFF))

	return u.String(), nil
}

// ID идентификатор в JSON: число, десятичная строка или UUID-форма
type ID int64

// UnmarshalJSON принимает обе формы идентификатора
func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	v, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = ID(v)
	return nil
}

// Int64 возвращает каноническое представление
func (id ID) Int64() int64 {
	return int64(id)
}
