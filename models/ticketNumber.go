package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sevene/garayi-carwash-v2-sub001/config"
)

// Ticket numbers look like GCW-2602011853001: prefix, then YYMMDDHHmm, then
// a 3-digit sequence scoped to that calendar minute. The sequence is derived
// from a count query the caller issues right before generation, not from an
// atomically reserved counter. Two offline devices minting tickets in the
// same minute can therefore produce the same number; the UUID primary key
// keeps the rows distinct and the duplicate surfaces at reconciliation.
// Known limitation, kept as-is.

const DefaultTicketPrefix = "GCW"

const maxTicketsPerMinute = 999

var ticketNumberPattern = regexp.MustCompile(`^([A-Z][A-Z0-9]*)-(\d{2})(\d{2})(\d{2})(\d{2})(\d{2})(\d{3})$`)

// TicketPrefix returns the configured business prefix.
func TicketPrefix() string {
	prefix := strings.TrimSpace(os.Getenv("POS_TICKET_PREFIX"))
	if prefix == "" {
		return DefaultTicketPrefix
	}
	return strings.ToUpper(prefix)
}

// TicketMinutePrefix returns everything except the sequence suffix for the
// minute containing now, e.g. "GCW-2602011853". Callers query existing
// tickets with this prefix to compute the count argument of NextTicketNumber.
func TicketMinutePrefix(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s", prefix, now.Format("0601021504"))
}

// NextTicketNumber mints the ticket number for the (countInMinute+1)-th
// ticket of the current minute.
func NextTicketNumber(prefix string, now time.Time, countInMinute int) (string, error) {
	if countInMinute < 0 {
		return "", errors.New("ticket count must not be negative")
	}
	if countInMinute >= maxTicketsPerMinute {
		return "", fmt.Errorf("ticket sequence exhausted for this minute (max %d)", maxTicketsPerMinute)
	}
	return fmt.Sprintf("%s%03d", TicketMinutePrefix(prefix, now), countInMinute+1), nil
}

// TicketNumberParts holds the decoded components of a well-formed ticket number.
type TicketNumberParts struct {
	Prefix   string `json:"prefix"`
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Day      int    `json:"day"`
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Sequence int    `json:"sequence"`
}

// ParseTicketNumber decodes a ticket number back into its components. The
// second return is false when the string does not match the fixed-width
// pattern.
func ParseTicketNumber(ticketNumber string) (TicketNumberParts, bool) {
	m := ticketNumberPattern.FindStringSubmatch(strings.TrimSpace(ticketNumber))
	if m == nil {
		return TicketNumberParts{}, false
	}

	parts := TicketNumberParts{Prefix: m[1]}
	fields := []*int{&parts.Year, &parts.Month, &parts.Day, &parts.Hour, &parts.Minute, &parts.Sequence}
	for i, field := range fields {
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return TicketNumberParts{}, false
		}
		*field = n
	}

	if parts.Month < 1 || parts.Month > 12 || parts.Day < 1 || parts.Day > 31 {
		return TicketNumberParts{}, false
	}
	if parts.Hour > 23 || parts.Minute > 59 || parts.Sequence < 1 {
		return TicketNumberParts{}, false
	}
	return parts, true
}

// CountTicketsForMinute counts tickets already minted in the minute the
// given prefix describes. The count feeds NextTicketNumber; see the race
// note at the top of this file.
func CountTicketsForMinute(ctx context.Context, minutePrefix string) (int, error) {
	var count int64
	err := config.GetDB().WithContext(ctx).
		Model(&Ticket{}).
		Where("ticket_number LIKE ?", minutePrefix+"%").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// GenerateTicketNumber is the query-then-generate convenience most callers
// want: minute prefix, count of existing tickets, next number.
func GenerateTicketNumber(ctx context.Context, now time.Time) (string, error) {
	minutePrefix := TicketMinutePrefix(TicketPrefix(), now)
	count, err := CountTicketsForMinute(ctx, minutePrefix)
	if err != nil {
		return "", err
	}
	return NextTicketNumber(TicketPrefix(), now, count)
}
