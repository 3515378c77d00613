package rest

import (
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/junpoanalyze/chips"
)

const (
	maxEmailLength    = 254
	minPasswordLength = 6
	maxPasswordLength = 128
	maxStoreId        = 100
)

var (
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	storeIdPattern = regexp.MustCompile(`^[0-9]+$`)
)

func validEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}

func validPassword(password string) bool {
	n := utf8.RuneCountInString(password)
	return n >= minPasswordLength && n <= maxPasswordLength
}

func validStoreId(id string) bool {
	if !storeIdPattern.MatchString(id) {
		return false
	}
	n, err := strconv.Atoi(id)
	return err == nil && n >= 1 && n <= maxStoreId
}

func validPeriod(month string) bool {
	return chips.PeriodKey(month).Valid()
}
