// Package cart реализует корзину покупки поверх снимка каталога.
package cart

import (
	"sort"

	"github.com/mmeshcher/dukapay/internal/model"
)

// Cart хранит выбранные позиции покупки. Позиции ссылаются только на товары
// из снимка каталога, количество каждой позиции строго положительно.
// Корзина принадлежит одной сессии оформления, синхронизация не нужна.
type Cart struct {
	items      map[int64]model.Item
	quantities map[int64]int64
}

// New создаёт пустую корзину поверх указанного снимка каталога.
func New(snapshot []model.Item) *Cart {
	items := make(map[int64]model.Item, len(snapshot))
	for _, it := range snapshot {
		items[it.ID] = it
	}

	return &Cart{
		items:      items,
		quantities: make(map[int64]int64),
	}
}

// Add увеличивает количество товара на единицу, создавая позицию при
// необходимости. Возвращает false, если товара нет в снимке каталога.
func (c *Cart) Add(itemID int64) bool {
	if _, ok := c.items[itemID]; !ok {
		return false
	}

	c.quantities[itemID]++
	return true
}

// Remove уменьшает количество товара на единицу и удаляет позицию,
// когда количество достигает нуля. Для отсутствующей позиции ничего не делает.
func (c *Cart) Remove(itemID int64) {
	qty, ok := c.quantities[itemID]
	if !ok {
		return
	}

	if qty <= 1 {
		delete(c.quantities, itemID)
		return
	}

	c.quantities[itemID] = qty - 1
}

// Lines возвращает позиции корзины, упорядоченные по идентификатору товара.
func (c *Cart) Lines() []model.CartLine {
	lines := make([]model.CartLine, 0, len(c.quantities))
	for id, qty := range c.quantities {
		lines = append(lines, model.CartLine{ItemID: id, Quantity: qty})
	}

	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ItemID < lines[j].ItemID
	})

	return lines
}

// Item возвращает товар из снимка каталога по идентификатору.
func (c *Cart) Item(itemID int64) (model.Item, bool) {
	it, ok := c.items[itemID]
	return it, ok
}

// TotalCents возвращает сумму корзины по последним известным ценам товаров.
func (c *Cart) TotalCents() int64 {
	var total int64
	for id, qty := range c.quantities {
		total += c.items[id].PriceCents * qty
	}
	return total
}

// Len возвращает число позиций корзины.
func (c *Cart) Len() int {
	return len(c.quantities)
}

// Clear опустошает корзину. Вызывается после создания счёта
// или при уходе из оформления.
func (c *Cart) Clear() {
	c.quantities = make(map[int64]int64)
}
