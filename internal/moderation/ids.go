package moderation

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	idLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idDigits  = "0123456789"
)

// NewPunishmentID builds a case ID like P1K34C6Z: fixed digits interleaved
// with a random letter, a random digit and a random letter-or-digit.
func NewPunishmentID() string {
	letter := idLetters[rand.Intn(len(idLetters))]
	digit := idDigits[rand.Intn(len(idDigits))]
	mixed := (idLetters + idDigits)[rand.Intn(len(idLetters)+len(idDigits))]
	return fmt.Sprintf("P1%c34%c6%c", letter, digit, mixed)
}

// NewReportID encodes the submission time so reports sort naturally when
// eyeballed in logs.
func NewReportID(now time.Time) string {
	return "R-" + strconv.FormatInt(now.Unix(), 36) + "-" + fmt.Sprintf("%04x", rand.Intn(0x10000))
}

func NewAppealID() string {
	return uuid.NewString()
}
