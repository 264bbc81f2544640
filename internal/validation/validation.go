// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// ErrInvalidDates возвращается, когда дата выезда не позже даты заезда.
var (
	ErrInvalidDates = errors.New("check-out must be after check-in")
	// ErrPastCheckIn возвращается, когда дата заезда уже прошла.
	ErrPastCheckIn = errors.New("check-in date is in the past")
	// ErrInvalidPhone возвращается для номера телефона, который не удаётся
	// привести к международному формату.
	ErrInvalidPhone = errors.New("invalid phone number")
)

// ValidateStay проверяет интервал проживания [checkIn, checkOut).
// Выезд должен быть строго позже заезда; заезд не может быть раньше
// начала текущих суток.
func ValidateStay(checkIn, checkOut, now time.Time) error {
	if !checkOut.After(checkIn) {
		return ErrInvalidDates
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if checkIn.Before(today) {
		return ErrPastCheckIn
	}
	return nil
}

// NormalizePhone приводит номер телефона к каноническому международному виду.
// Пробелы, дефисы и скобки отбрасываются; ведущий ноль заменяется кодом
// страны countryCode (например "+256"); номер, уже начинающийся с "+",
// сохраняется как есть. Любой нецифровой символ после очистки — ошибка.
func NormalizePhone(raw, countryCode string) (string, error) {
	var b strings.Builder
	for i, ch := range strings.TrimSpace(raw) {
		if ch == '+' && i == 0 {
			b.WriteRune(ch)
			continue
		}
		if ch == ' ' || ch == '-' || ch == '(' || ch == ')' {
			continue
		}
		if !unicode.IsDigit(ch) {
			return "", ErrInvalidPhone
		}
		b.WriteRune(ch)
	}

	s := b.String()
	switch {
	case s == "" || s == "+":
		return "", ErrInvalidPhone
	case strings.HasPrefix(s, "+"):
	case strings.HasPrefix(s, "0"):
		s = countryCode + s[1:]
	default:
		s = countryCode + s
	}

	if len(s) < 10 {
		return "", ErrInvalidPhone
	}
	return s, nil
}
