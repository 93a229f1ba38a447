package invoice

import (
	"fmt"
	"regexp"
	"strconv"
)

var numberPattern = regexp.MustCompile(`^([A-Z0-9]+)-(\d{4})-(\d{6})$`)

func formatNumber(prefix string, year, sequence int) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, sequence)
}

// ParseNumber splits an invoice number into prefix, year and sequence.
func ParseNumber(invoiceNumber string) (prefix string, year, sequence int, err error) {
	m := numberPattern.FindStringSubmatch(invoiceNumber)
	if m == nil {
		return "", 0, 0, fmt.Errorf("malformed invoice number: %s", invoiceNumber)
	}
	year, _ = strconv.Atoi(m[2])
	sequence, _ = strconv.Atoi(m[3])
	return m[1], year, sequence, nil
}
