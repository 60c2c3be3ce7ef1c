package utils

import "strings"

func SafeDeref[T any](ptr *T) T {
	if ptr == nil {
		var zero T
		return zero
	}
	return *ptr
}

func ToPtr[T any](v T) *T {
	return &v
}

// TrimmedOrNil обрезает пробелы; пустая строка в необязательном поле хранится как NULL,
// иначе уникальные serial_number и barcode столкнутся на "".
func TrimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
