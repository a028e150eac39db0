package orders

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const orderNumberPrefix = "PED"

// NumberGenerator produces candidate order numbers.
type NumberGenerator interface {
	Next(now time.Time) string
}

// NumberGeneratorFunc adapts a function to NumberGenerator.
type NumberGeneratorFunc func(now time.Time) string

func (f NumberGeneratorFunc) Next(now time.Time) string {
	return f(now)
}

// TimestampNumberGenerator yields PED<yyyyMMddHHmmss><4 random digits>.
type TimestampNumberGenerator struct{}

func (TimestampNumberGenerator) Next(now time.Time) string {
	return fmt.Sprintf("%s%s%04d", orderNumberPrefix, now.UTC().Format("20060102150405"), rand.IntN(10000))
}
