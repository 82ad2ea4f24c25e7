// Package validation содержит функции валидации входных данных.
package validation

import "strings"

// NormalizePhone убирает пробельные символы вокруг номера телефона и
// возвращает признак того, что номер задан. Проверка формата номера
// выполняется платёжным шлюзом.
func NormalizePhone(phone string) (string, bool) {
	trimmed := strings.TrimSpace(phone)
	return trimmed, trimmed != ""
}
