package models

import (
	"fmt"
)

// Ширина ячеек в упаковках аркад
const (
	DestructoidCellBits = 3
	HopCellBits         = 2
)

// DeliveryPathBit зарезервированный бит плитки delivery-аркады: 1 означает дорогу, 0 декорацию
const DeliveryPathBit = 0x80

// CellsPerRow сколько ячеек заданной ширины помещается в 64 бита
func CellsPerRow(width uint) int {
	return 64 / int(width)
}

// PackCells упаковывает ячейки в uint64, младшие биты соответствуют первой ячейке
func PackCells(cells []int, width uint) (uint64, error) {
	if width == 0 || width > 8 {
		return 0, fmt.Errorf("invalid cell width %d", width)
	}
	if len(cells) > CellsPerRow(width) {
		return 0, fmt.Errorf("%d cells do not fit into 64 bits at width %d", len(cells), width)
	}
	limit := 1<<width - 1
	var packed uint64
	for i, c := range cells {
		if c < 0 || c > limit {
			return 0, fmt.Errorf("cell %d value %d exceeds %d bits", i, c, width)
		}
		packed |= uint64(c) << (uint(i) * width)
	}
	return packed, nil
}

// UnpackCells распаковывает n ячеек заданной ширины
func UnpackCells(packed uint64, width uint, n int) []int {
	cells := make([]int, n)
	mask := uint64(1<<width - 1)
	for i := range cells {
		cells[i] = int((packed >> (uint(i) * width)) & mask)
	}
	return cells
}

// DeliveryTile собирает плитку из вида и признака дороги
func DeliveryTile(kind int, path bool) (int, error) {
	if kind < 0 || kind >= DeliveryPathBit {
		return 0, fmt.Errorf("tile kind %d out of range", kind)
	}
	if path {
		return kind | DeliveryPathBit, nil
	}
	return kind, nil
}

// IsPathTile сообщает, является ли плитка дорогой
func IsPathTile(tile int) bool {
	return tile&DeliveryPathBit != 0
}

// TileKind вид плитки без зарезервированного бита
func TileKind(tile int) int {
	return tile &^ DeliveryPathBit
}
