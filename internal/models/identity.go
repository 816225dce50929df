package models

import "strings"

// NormalizeAddress приводит идентификатор кошелька к каноническому виду.
// Сравнение адресов во всём ядре регистронезависимое, поэтому адреса
// нормализуются один раз на границе, а дальше сравниваются как есть.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SameAddress сравнивает два идентификатора кошелька без учёта регистра.
// Пустой адрес не совпадает ни с чем, включая другой пустой адрес.
func SameAddress(a, b string) bool {
	na := NormalizeAddress(a)
	return na == NormalizeAddress(b) && na != ""
}
