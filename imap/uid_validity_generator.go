package imap

import (
	"fmt"
	"sync/atomic"
	"time"
)

type UIDValidityGenerator interface {
	Generate() (UIDValidity, error)
}

type EpochUIDValidityGenerator struct {
	epochStart time.Time
	lastValue  uint32
}

func NewEpochUIDValidityGenerator(epochStart time.Time) *EpochUIDValidityGenerator {
	return &EpochUIDValidityGenerator{
		epochStart: epochStart,
	}
}

func DefaultEpochUIDValidityGenerator() *EpochUIDValidityGenerator {
	return NewEpochUIDValidityGenerator(time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC))
}

func (e *EpochUIDValidityGenerator) Generate() (UIDValidity, error) {
	timeStamp := uint64(time.Since(e.epochStart).Seconds())
	if timeStamp > uint64(0xFFFFFFFF) {
		return 0, fmt.Errorf("failed to generate uid validity, interval exceeded maximum capacity")
	}

	timeStampU32 := uint32(timeStamp)

	// This loop is here to ensure that two successive calls to Generate that happen during the same second
	// can still generate unique values. To avoid waiting another second until the values are different,
	// we keep bumping the last generated value until it is greater than the last generated value.
	for {
		lastGenerated := atomic.LoadUint32(&e.lastValue)

		// Not enough time elapsed between the last time.
		if lastGenerated >= timeStampU32 {
			if timeStampU32 == 0xFFFFFFFF {
				return 0, fmt.Errorf("failed to generate uid validity, interval exceeded maximum capacity")
			}

			timeStampU32 += 1

			continue
		}

		if !atomic.CompareAndSwapUint32(&e.lastValue, lastGenerated, timeStampU32) {
			continue
		}

		return UIDValidity(timeStampU32), nil
	}
}

type IncrementalUIDValidityGenerator struct {
	counter uint32
}

func (i *IncrementalUIDValidityGenerator) Generate() (UIDValidity, error) {
	return UIDValidity(atomic.AddUint32(&i.counter, 1)), nil
}

func (i *IncrementalUIDValidityGenerator) GetValue() UIDValidity {
	return UIDValidity(atomic.LoadUint32(&i.counter))
}

func NewIncrementalUIDValidityGenerator() *IncrementalUIDValidityGenerator {
	return &IncrementalUIDValidityGenerator{}
}

type FixedUIDValidityGenerator struct {
	Value UIDValidity
}

func (f FixedUIDValidityGenerator) Generate() (UIDValidity, error) {
	return f.Value, nil
}

func NewFixedUIDValidityGenerator(value UIDValidity) *FixedUIDValidityGenerator {
	return &FixedUIDValidityGenerator{Value: value}
}
